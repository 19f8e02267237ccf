package tracking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/auth"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

// FilterActive selects the statuses shown on the kitchen board
const FilterActive = "active"

// Service provides read access to placed orders
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates a new tracking service
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// ListCustomerOrders returns the actor's own orders, newest first
func (s *Service) ListCustomerOrders(ctx context.Context, actor auth.Actor) ([]models.Order, error) {
	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	return s.listWithItems(ctx, OrderQuery{CustomerID: actor.UserID})
}

// ListOrders returns every order matching filter for staff. filter is empty
// for all orders, "active", or a single status.
func (s *Service) ListOrders(ctx context.Context, actor auth.Actor, filter string) ([]models.Order, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	statuses, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}
	return s.listWithItems(ctx, OrderQuery{Statuses: statuses})
}

func (s *Service) listWithItems(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	requestID := logger.RequestIDFromContext(ctx)

	orders, err := s.repo.ListOrders(ctx, q)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to list orders", requestID, err, map[string]interface{}{
			"customer_id": q.CustomerID,
		})
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := s.repo.ListItems(ctx, ids)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to list order items", requestID, err, nil)
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// StatusCounts returns the number of orders in each active status
func (s *Service) StatusCounts(ctx context.Context, actor auth.Actor) (map[models.OrderStatus]int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByStatus(ctx, models.ActiveStatuses)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to count orders", logger.RequestIDFromContext(ctx), err, nil)
		return nil, err
	}

	result := make(map[models.OrderStatus]int, len(models.ActiveStatuses))
	for _, status := range models.ActiveStatuses {
		result[status] = counts[status]
	}
	return result, nil
}

// GetOrder returns an order with its items and payment. Customers can only
// see their own orders; anything else is reported as not found.
func (s *Service) GetOrder(ctx context.Context, actor auth.Actor, id string) (*models.OrderDetails, error) {
	order, err := s.visibleOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	payment, err := s.repo.GetPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return &models.OrderDetails{Order: *order, Payment: payment}, nil
}

// GetOrderHistory returns the status log of an order, oldest first
func (s *Service) GetOrderHistory(ctx context.Context, actor auth.Actor, id string) ([]models.OrderStatusHistory, error) {
	order, err := s.visibleOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListHistory(ctx, order.ID)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query order history", logger.RequestIDFromContext(ctx), err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}
	return history, nil
}

func (s *Service) visibleOrder(ctx context.Context, actor auth.Actor, id string) (*models.Order, error) {
	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanManageOrders() && order.CustomerID != actor.UserID {
		return nil, fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}
	return order, nil
}

// HealthCheck checks the health of dependencies
func (s *Service) HealthCheck(ctx context.Context) bool {
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Error("health_check_failed", "Database ping failed", "", err, nil)
		return false
	}
	return true
}

func requireStaff(actor auth.Actor) error {
	if actor.UserID == "" {
		return apperrors.ErrUnauthenticated
	}
	if !actor.Role.CanManageOrders() {
		return fmt.Errorf("role %s cannot list all orders: %w", actor.Role, apperrors.ErrForbidden)
	}
	return nil
}

func parseFilter(filter string) ([]models.OrderStatus, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	switch filter {
	case "", "all":
		return nil, nil
	case FilterActive:
		return models.ActiveStatuses, nil
	}

	status := models.OrderStatus(filter)
	if !status.Valid() {
		return nil, apperrors.Invalid("status", "filter must be active, all, or an order status")
	}
	return []models.OrderStatus{status}, nil
}
