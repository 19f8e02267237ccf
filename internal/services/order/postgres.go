package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/database"
	"restaurant-system/internal/models"
)

// Repository persists orders in PostgreSQL
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(ctx context.Context, fn func(w Writer) error) error {
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&txWriter{q: tx})
	})
	return apperrors.Platform("order transaction", err)
}

// txWriter issues writes on a single transaction
type txWriter struct {
	q database.Querier
}

func (w *txWriter) InsertOrder(ctx context.Context, o *models.Order) error {
	err := w.q.QueryRow(ctx, database.InsertOrderSQL,
		o.ID, o.CustomerID, o.Type, o.TableNumber, o.TotalAmount, o.Notes, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return apperrors.Platform("insert order", err)
	}
	return nil
}

func (w *txWriter) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	_, err := w.q.Exec(ctx, database.InsertOrderItemSQL,
		item.ID, item.OrderID, item.MenuItemID, item.ItemName,
		item.Quantity, item.UnitPrice, item.Subtotal, item.SpecialInstructions,
	)
	if err != nil {
		return apperrors.Platform("insert order item", err)
	}
	return nil
}

func (w *txWriter) InsertPayment(ctx context.Context, p *models.Payment) error {
	err := w.q.QueryRow(ctx, database.InsertPaymentSQL,
		p.ID, p.OrderID, p.Amount, p.Method, p.Status,
	).Scan(&p.CreatedAt)
	if err != nil {
		return apperrors.Platform("insert payment", err)
	}
	return nil
}

func (w *txWriter) AppendStatusLog(ctx context.Context, e StatusLogEntry) error {
	_, err := w.q.Exec(ctx, database.InsertOrderStatusLogSQL,
		e.OrderID, e.PrevStatus, e.Status, e.ChangedBy, e.Notes,
	)
	if err != nil {
		return apperrors.Platform("insert status log", err)
	}
	return nil
}

func (w *txWriter) LockStatus(ctx context.Context, orderID string) (models.OrderStatus, error) {
	var status models.OrderStatus
	err := w.q.QueryRow(ctx, database.LockOrderStatusSQL, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("order %s: %w", orderID, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", apperrors.Platform("lock order", err)
	}
	return status, nil
}

func (w *txWriter) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	var o models.Order
	err := w.q.QueryRow(ctx, database.UpdateOrderStatusSQL, status, orderID).Scan(
		&o.ID,
		&o.CustomerID,
		&o.Type,
		&o.TableNumber,
		&o.TotalAmount,
		&o.Notes,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, apperrors.Platform("update order status", err)
	}
	return &o, nil
}
