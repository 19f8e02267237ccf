package tracking

import (
	"context"

	"restaurant-system/internal/models"
)

// OrderQuery selects orders. Empty fields do not filter.
type OrderQuery struct {
	CustomerID string
	Statuses   []models.OrderStatus
}

// Repository reads placed orders
type Repository interface {
	ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error)
	// GetOrder returns apperrors.ErrNotFound for an unknown id
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error)
	// GetPayment returns nil when the order has no payment row
	GetPayment(ctx context.Context, orderID string) (*models.Payment, error)
	ListHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error)
	CountByStatus(ctx context.Context, statuses []models.OrderStatus) (map[models.OrderStatus]int, error)
	Ping(ctx context.Context) error
}
