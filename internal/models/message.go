package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedMessage is published after a successful checkout
type OrderPlacedMessage struct {
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	OrderType     OrderType       `json:"order_type"`
	TableNumber   *int            `json:"table_number,omitempty"`
	Items         []OrderItem     `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PlacedAt      time.Time       `json:"placed_at"`
}

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	OldStatus  OrderStatus `json:"old_status"`
	NewStatus  OrderStatus `json:"new_status"`
	ChangedBy  string      `json:"changed_by"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewOrderPlacedMessage builds the checkout event for order
func NewOrderPlacedMessage(order *Order, payment *Payment) *OrderPlacedMessage {
	return &OrderPlacedMessage{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		OrderType:     order.Type,
		TableNumber:   order.TableNumber,
		Items:         order.Items,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: payment.Method,
		PlacedAt:      order.CreatedAt,
	}
}

// NewStatusUpdateMessage creates a StatusUpdateMessage for order status changes
func NewStatusUpdateMessage(order *Order, oldStatus OrderStatus, changedBy string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		OldStatus:  oldStatus,
		NewStatus:  order.Status,
		ChangedBy:  changedBy,
		Timestamp:  order.UpdatedAt.UTC(),
	}
}

// OrderRoutingKey returns the routing key for order events
func OrderRoutingKey(orderType OrderType) string {
	return fmt.Sprintf("orders.%s", orderType)
}
