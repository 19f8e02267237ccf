package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents how the customer receives the order
type OrderType string

const (
	DineIn   OrderType = "dine-in"
	Takeaway OrderType = "takeaway"
	Delivery OrderType = "delivery"
)

// Valid reports whether t is one of the known order types
func (t OrderType) Valid() bool {
	switch t {
	case DineIn, Takeaway, Delivery:
		return true
	}
	return false
}

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled}

// ActiveStatuses are the statuses shown on the kitchen board
var ActiveStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusReady}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentMethod represents how an order was paid
type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentMobile PaymentMethod = "mobile"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentCash, PaymentMobile:
		return true
	}
	return false
}

// PaymentStatus is always completed: checkout settles payment immediately
type PaymentStatus string

const PaymentCompleted PaymentStatus = "completed"

// Order represents a placed customer order
type Order struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Type        OrderType       `json:"order_type"`
	TableNumber *int            `json:"table_number,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       *string         `json:"notes,omitempty"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// OrderItem is an immutable line-item snapshot of one cart entry
type OrderItem struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"order_id"`
	MenuItemID          string          `json:"menu_item_id"`
	ItemName            string          `json:"item_name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	SpecialInstructions *string         `json:"special_instructions,omitempty"`
}

// Payment records settlement of one order's total
type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"payment_method"`
	Status    PaymentStatus   `json:"payment_status"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderStatusHistory represents an entry in the order status log
type OrderStatusHistory struct {
	Status     OrderStatus  `json:"status"`
	PrevStatus *OrderStatus `json:"previous_status,omitempty"`
	ChangedBy  string       `json:"changed_by"`
	ChangedAt  time.Time    `json:"timestamp"`
	Notes      *string      `json:"notes,omitempty"`
}

// OrderDetails is an order with its line items and payment
type OrderDetails struct {
	Order
	Payment *Payment `json:"payment,omitempty"`
}
