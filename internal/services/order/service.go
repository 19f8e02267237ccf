package order

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/auth"
	"restaurant-system/internal/cart"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

// Service owns the cart, checkout and status change flows
type Service struct {
	store  Store
	carts  cart.Store
	menu   MenuCatalog
	events EventPublisher
	logger *logger.Logger
}

// NewService creates a new order service
func NewService(store Store, carts cart.Store, menu MenuCatalog, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		carts:  carts,
		menu:   menu,
		events: events,
		logger: log,
	}
}

// CheckoutResult is the persisted outcome of a checkout
type CheckoutResult struct {
	Order   *models.Order   `json:"order"`
	Payment *models.Payment `json:"payment"`
}

// Checkout turns c into an order, its line items and a payment. All rows
// are written in one transaction. Only after it commits are the ordered
// quantities taken off the stored cart and c cleared.
func (s *Service) Checkout(ctx context.Context, actor auth.Actor, c *cart.Cart, req CheckoutRequest) (*CheckoutResult, error) {
	requestID := logger.RequestIDFromContext(ctx)

	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	if err := ValidateCheckout(c, &req); err != nil {
		s.logger.Debug("validation_failed", "Checkout rejected", requestID, map[string]interface{}{
			"customer_id": actor.UserID,
			"reason":      err.Error(),
		})
		return nil, err
	}

	order, payment := buildOrder(actor.UserID, c, req)

	err := s.store.WithTx(ctx, func(w Writer) error {
		if err := w.InsertOrder(ctx, order); err != nil {
			return err
		}
		for i := range order.Items {
			if err := w.InsertOrderItem(ctx, &order.Items[i]); err != nil {
				return err
			}
		}
		if err := w.InsertPayment(ctx, payment); err != nil {
			return err
		}
		return w.AppendStatusLog(ctx, StatusLogEntry{
			OrderID:   order.ID,
			Status:    order.Status,
			ChangedBy: actor.UserID,
			Notes:     strPtr("order placed"),
		})
	})
	if err != nil {
		s.logger.Error("checkout_failed", "Failed to persist order", requestID, err, map[string]interface{}{
			"customer_id": actor.UserID,
			"order_type":  order.Type,
		})
		return nil, apperrors.Platform("checkout", err)
	}

	if err := s.carts.Release(ctx, actor.UserID, c); err != nil {
		s.logger.Error("cart_clear_failed", "Order placed but stored cart was not cleared", requestID, err, map[string]interface{}{
			"order_id":    order.ID,
			"customer_id": actor.UserID,
		})
	}
	c.Clear()

	if err := s.events.PublishOrderPlaced(ctx, models.NewOrderPlacedMessage(order, payment)); err != nil {
		s.logger.Error("order_event_failed", "Order placed but event was not published", requestID, err, map[string]interface{}{
			"order_id": order.ID,
		})
	}

	s.logger.Info("order_created", fmt.Sprintf("Order %s created", order.ID), requestID, map[string]interface{}{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"order_type":   order.Type,
		"item_count":   len(order.Items),
		"total_amount": order.TotalAmount.StringFixed(2),
	})

	return &CheckoutResult{Order: order, Payment: payment}, nil
}

func buildOrder(customerID string, c *cart.Cart, req CheckoutRequest) (*models.Order, *models.Payment) {
	order := &models.Order{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		Type:        req.OrderType,
		TotalAmount: c.TotalAmount(),
		Notes:       trimmed(req.Notes),
		Status:      models.StatusPending,
	}
	if req.OrderType == models.DineIn {
		order.TableNumber = req.TableNumber
	}

	for _, item := range c.Items() {
		order.Items = append(order.Items, models.OrderItem{
			ID:                  uuid.NewString(),
			OrderID:             order.ID,
			MenuItemID:          item.ID,
			ItemName:            item.Name,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
			Subtotal:            item.Subtotal(),
			SpecialInstructions: trimmed(&item.SpecialInstructions),
		})
	}

	payment := &models.Payment{
		ID:      uuid.NewString(),
		OrderID: order.ID,
		Amount:  order.TotalAmount,
		Method:  req.PaymentMethod,
		Status:  models.PaymentCompleted,
	}
	return order, payment
}

// SetStatus moves an order to status. Repeating the current status is a
// no-op; delivered and cancelled orders cannot move anywhere else.
func (s *Service) SetStatus(ctx context.Context, actor auth.Actor, orderID string, status models.OrderStatus) (*models.Order, error) {
	return s.changeStatus(ctx, actor, orderID, status, func(prev models.OrderStatus) error {
		if prev.Terminal() && prev != status {
			return apperrors.ConflictError{
				Message: fmt.Sprintf("order is %s and can no longer change status", prev),
			}
		}
		return nil
	})
}

// AdvanceStatus moves the order to status only while it is still in from.
// Any other current status is a ConflictError.
func (s *Service) AdvanceStatus(ctx context.Context, actor auth.Actor, orderID string, from, status models.OrderStatus) (*models.Order, error) {
	return s.changeStatus(ctx, actor, orderID, status, func(prev models.OrderStatus) error {
		if prev != from {
			return apperrors.ConflictError{
				Message: fmt.Sprintf("order is %s, not %s", prev, from),
			}
		}
		return nil
	})
}

// changeStatus applies status under a row lock once allow accepts the
// current status
func (s *Service) changeStatus(ctx context.Context, actor auth.Actor, orderID string, status models.OrderStatus, allow func(prev models.OrderStatus) error) (*models.Order, error) {
	requestID := logger.RequestIDFromContext(ctx)

	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	if !actor.Role.CanManageOrders() {
		return nil, fmt.Errorf("role %s cannot change order status: %w", actor.Role, apperrors.ErrForbidden)
	}
	if !status.Valid() {
		return nil, apperrors.Invalid("status", "status must be one of pending, preparing, ready, delivered, cancelled")
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, apperrors.ErrNotFound)
	}

	var (
		updated *models.Order
		prev    models.OrderStatus
	)
	err := s.store.WithTx(ctx, func(w Writer) error {
		var err error
		prev, err = w.LockStatus(ctx, orderID)
		if err != nil {
			return err
		}
		if err := allow(prev); err != nil {
			return err
		}

		updated, err = w.UpdateStatus(ctx, orderID, status)
		if err != nil {
			return err
		}
		if prev == status {
			return nil
		}
		return w.AppendStatusLog(ctx, StatusLogEntry{
			OrderID:    orderID,
			PrevStatus: &prev,
			Status:     status,
			ChangedBy:  actor.UserID,
		})
	})
	if err != nil {
		if apperrors.IsPlatform(err) {
			s.logger.Error("status_update_failed", "Failed to update order status", requestID, err, map[string]interface{}{
				"order_id": orderID,
				"status":   status,
			})
		}
		return nil, apperrors.Platform("set status", err)
	}

	if prev == status {
		return updated, nil
	}

	if err := s.events.PublishStatusUpdate(ctx, models.NewStatusUpdateMessage(updated, prev, actor.UserID)); err != nil {
		s.logger.Error("status_event_failed", "Status changed but event was not published", requestID, err, map[string]interface{}{
			"order_id": orderID,
		})
	}

	s.logger.Info("order_status_updated", fmt.Sprintf("Order %s: %s -> %s", orderID, prev, status), requestID, map[string]interface{}{
		"order_id":   orderID,
		"old_status": prev,
		"new_status": status,
		"changed_by": actor.UserID,
	})

	return updated, nil
}

// AddCartItemRequest selects a menu item for the cart
type AddCartItemRequest struct {
	MenuItemID          string `json:"menu_item_id"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// GetCart returns the actor's stored cart
func (s *Service) GetCart(ctx context.Context, actor auth.Actor) (*cart.Cart, error) {
	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	return s.carts.Load(ctx, actor.UserID)
}

// AddToCart looks the menu item up and adds it with its current price.
// An omitted quantity means one.
func (s *Service) AddToCart(ctx context.Context, actor auth.Actor, req AddCartItemRequest) (*cart.Cart, error) {
	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	if strings.TrimSpace(req.MenuItemID) == "" {
		return nil, apperrors.Invalid("menu_item_id", "menu item id is required")
	}
	if utf8.RuneCountInString(req.SpecialInstructions) > maxInstructionsLength {
		return nil, apperrors.Invalid("special_instructions",
			fmt.Sprintf("special instructions must be at most %d characters", maxInstructionsLength))
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	item, err := s.menu.GetItem(ctx, req.MenuItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable {
		return nil, apperrors.Invalid("menu_item_id", fmt.Sprintf("%s is not available", item.Name))
	}

	c, err := s.carts.Load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	err = c.Add(cart.Item{
		ID:                  item.ID,
		Name:                item.Name,
		UnitPrice:           item.Price,
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
	}, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.Save(ctx, actor.UserID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCartItem sets the quantity of one entry; quantity <= 0 removes it
func (s *Service) UpdateCartItem(ctx context.Context, actor auth.Actor, itemID string, quantity int) (*cart.Cart, error) {
	return s.mutateCart(ctx, actor, func(c *cart.Cart) error {
		return c.UpdateQuantity(itemID, quantity)
	})
}

// RemoveCartItem deletes one entry; removing an absent entry is not an error
func (s *Service) RemoveCartItem(ctx context.Context, actor auth.Actor, itemID string) (*cart.Cart, error) {
	return s.mutateCart(ctx, actor, func(c *cart.Cart) error {
		c.Remove(itemID)
		return nil
	})
}

// ClearCart empties the actor's cart
func (s *Service) ClearCart(ctx context.Context, actor auth.Actor) error {
	if actor.UserID == "" {
		return apperrors.ErrUnauthenticated
	}
	return s.carts.Delete(ctx, actor.UserID)
}

func (s *Service) mutateCart(ctx context.Context, actor auth.Actor, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	c, err := s.carts.Load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	if err := s.carts.Save(ctx, actor.UserID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func strPtr(s string) *string {
	return &s
}
