package order

import (
	"context"

	"restaurant-system/internal/models"
)

// Store runs order writes atomically
type Store interface {
	// WithTx runs fn in one transaction. Nothing fn wrote survives if it
	// returns an error.
	WithTx(ctx context.Context, fn func(w Writer) error) error
}

// Writer is the set of writes available inside a transaction
type Writer interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	InsertPayment(ctx context.Context, payment *models.Payment) error
	AppendStatusLog(ctx context.Context, entry StatusLogEntry) error
	// LockStatus returns the current status and holds the row until commit.
	// It returns apperrors.ErrNotFound for an unknown order.
	LockStatus(ctx context.Context, orderID string) (models.OrderStatus, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

// StatusLogEntry is one row of the order status audit log
type StatusLogEntry struct {
	OrderID    string
	PrevStatus *models.OrderStatus
	Status     models.OrderStatus
	ChangedBy  string
	Notes      *string
}

// MenuCatalog resolves menu items for the cart
type MenuCatalog interface {
	GetItem(ctx context.Context, id string) (*models.MenuItem, error)
}

// EventPublisher announces committed order events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, msg *models.OrderPlacedMessage) error
	PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error
}
