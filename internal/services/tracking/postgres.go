package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/database"
	"restaurant-system/internal/models"
)

// PostgresRepository reads orders from PostgreSQL
type PostgresRepository struct {
	db *database.DB
}

func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case q.CustomerID != "":
		rows, err = r.db.Query(ctx, database.ListOrdersByCustomerSQL, q.CustomerID)
	case len(q.Statuses) > 0:
		rows, err = r.db.Query(ctx, database.ListOrdersByStatusSQL, statusStrings(q.Statuses))
	default:
		rows, err = r.db.Query(ctx, database.ListAllOrdersSQL)
	}
	if err != nil {
		return nil, apperrors.Platform("list orders", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperrors.Platform("scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Platform("list orders", err)
	}
	return orders, nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, database.GetOrderByIDSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, apperrors.Platform("get order", err)
	}
	return o, nil
}

func (r *PostgresRepository) ListItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	result := make(map[string][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(orderIDs))
	for _, id := range orderIDs {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		ids = append(ids, parsed)
	}

	rows, err := r.db.Query(ctx, database.ListOrderItemsSQL, ids)
	if err != nil {
		return nil, apperrors.Platform("list order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.MenuItemID,
			&item.ItemName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.SpecialInstructions,
		)
		if err != nil {
			return nil, apperrors.Platform("scan order item", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Platform("list order items", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.QueryRow(ctx, database.GetPaymentByOrderSQL, orderID).Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Method,
		&p.Status,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Platform("get payment", err)
	}
	return &p, nil
}

func (r *PostgresRepository) ListHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	rows, err := r.db.Query(ctx, database.GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, apperrors.Platform("list order history", err)
	}
	defer rows.Close()

	history := make([]models.OrderStatusHistory, 0)
	for rows.Next() {
		var entry models.OrderStatusHistory
		err := rows.Scan(
			&entry.Status,
			&entry.PrevStatus,
			&entry.ChangedBy,
			&entry.ChangedAt,
			&entry.Notes,
		)
		if err != nil {
			return nil, apperrors.Platform("scan order history", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Platform("list order history", err)
	}
	return history, nil
}

func (r *PostgresRepository) CountByStatus(ctx context.Context, statuses []models.OrderStatus) (map[models.OrderStatus]int, error) {
	rows, err := r.db.Query(ctx, database.CountOrdersByStatusSQL, statusStrings(statuses))
	if err != nil {
		return nil, apperrors.Platform("count orders", err)
	}
	defer rows.Close()

	counts := make(map[models.OrderStatus]int, len(statuses))
	for rows.Next() {
		var (
			status models.OrderStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperrors.Platform("scan order count", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Platform("count orders", err)
	}
	return counts, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
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
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
