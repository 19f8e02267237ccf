package kitchen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/auth"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
)

// StatusGate is the part of the order service the kitchen uses
type StatusGate interface {
	AdvanceStatus(ctx context.Context, actor auth.Actor, orderID string, from, status models.OrderStatus) (*models.Order, error)
}

// Worker takes newly placed orders off the kitchen queue, prints a ticket
// and moves each order to preparing
type Worker struct {
	name       string
	orderTypes []models.OrderType
	orders     StatusGate
	consumer   *messaging.Consumer
	logger     *logger.Logger
	out        io.Writer
}

// NewWorker creates a kitchen worker. An empty orderTypes accepts every
// order type.
func NewWorker(name string, orderTypes []models.OrderType, orders StatusGate, consumer *messaging.Consumer, log *logger.Logger, out io.Writer) *Worker {
	return &Worker{
		name:       name,
		orderTypes: orderTypes,
		orders:     orders,
		consumer:   consumer,
		logger:     log,
		out:        out,
	}
}

// ParseOrderTypes parses a comma-separated --order-types value
func ParseOrderTypes(raw string) ([]models.OrderType, error) {
	var types []models.OrderType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := models.OrderType(part)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown order type %q", part)
		}
		types = append(types, t)
	}
	return types, nil
}

// Run consumes until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker_started", fmt.Sprintf("Kitchen worker %s started", w.name), "", map[string]interface{}{
		"worker_name": w.name,
		"order_types": w.orderTypes,
	})
	defer func() {
		if err := w.consumer.Close(); err != nil {
			w.logger.Error("consumer_close_failed", "Failed to cancel consumer", "", err, nil)
		}
	}()
	return w.consumer.Run(ctx, w.Handle)
}

// Handle processes one OrderPlaced delivery
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	requestID := logger.RequestIDFromContext(ctx)

	var msg models.OrderPlacedMessage
	if err := messaging.Decode(body, &msg); err != nil {
		return err
	}

	if !w.canHandle(msg.OrderType) {
		w.logger.Debug("order_rejected", fmt.Sprintf("Worker %s does not handle %s orders", w.name, msg.OrderType), requestID, map[string]interface{}{
			"order_id":   msg.OrderID,
			"order_type": msg.OrderType,
		})
		// Left on the queue for a worker with a matching specialization.
		return fmt.Errorf("%w: worker %s cannot handle order type %s", messaging.ErrRequeue, w.name, msg.OrderType)
	}

	actor := auth.Actor{UserID: w.name, Role: models.RoleStaff}
	_, err := w.orders.AdvanceStatus(ctx, actor, msg.OrderID, models.StatusPending, models.StatusPreparing)
	switch {
	case err == nil:
	case apperrors.IsConflict(err):
		w.logger.Debug("order_already_handled", err.Error(), requestID, map[string]interface{}{
			"order_id": msg.OrderID,
		})
		return nil
	case errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("%w: %v", messaging.ErrDiscard, err)
	default:
		return err
	}

	if _, err := fmt.Fprint(w.out, Ticket(&msg)); err != nil {
		return fmt.Errorf("failed to print ticket: %w", err)
	}

	w.logger.Info("order_accepted", fmt.Sprintf("Order %s is being prepared", msg.OrderID), requestID, map[string]interface{}{
		"order_id":    msg.OrderID,
		"order_type":  msg.OrderType,
		"items":       len(msg.Items),
		"worker_name": w.name,
	})
	return nil
}

func (w *Worker) canHandle(orderType models.OrderType) bool {
	if len(w.orderTypes) == 0 {
		return true
	}
	for _, t := range w.orderTypes {
		if t == orderType {
			return true
		}
	}
	return false
}

// Ticket renders the kitchen ticket for msg
func Ticket(msg *models.OrderPlacedMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s | %s", msg.OrderID, strings.ToUpper(string(msg.OrderType)))
	if msg.TableNumber != nil {
		fmt.Fprintf(&b, " | table %d", *msg.TableNumber)
	}
	fmt.Fprintf(&b, " | %s ===\n", msg.PlacedAt.Format("15:04"))
	for _, item := range msg.Items {
		fmt.Fprintf(&b, "%3dx %s\n", item.Quantity, item.ItemName)
		if item.SpecialInstructions != nil {
			fmt.Fprintf(&b, "     > %s\n", *item.SpecialInstructions)
		}
	}
	return b.String()
}
