package notification

import (
	"context"
	"fmt"
	"io"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
)

// Subscriber prints order status updates from the notifications queue
type Subscriber struct {
	consumer *messaging.Consumer
	logger   *logger.Logger
	out      io.Writer
}

// NewSubscriber creates a subscriber writing one line per update to out
func NewSubscriber(consumer *messaging.Consumer, log *logger.Logger, out io.Writer) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		out:      out,
	}
}

// Run consumes until ctx is cancelled
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("service_started", "Notification subscriber started", "", nil)
	defer func() {
		if err := s.consumer.Close(); err != nil {
			s.logger.Error("consumer_close_failed", "Failed to cancel consumer", "", err, nil)
		}
	}()
	return s.consumer.Run(ctx, s.Handle)
}

// Handle processes one status update delivery
func (s *Subscriber) Handle(ctx context.Context, body []byte) error {
	requestID := logger.RequestIDFromContext(ctx)

	var update models.StatusUpdateMessage
	if err := messaging.Decode(body, &update); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(s.out, Format(&update)); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	s.logger.Info("notification_displayed", "Status update delivered", requestID, map[string]interface{}{
		"order_id":    update.OrderID,
		"customer_id": update.CustomerID,
		"old_status":  update.OldStatus,
		"new_status":  update.NewStatus,
		"changed_by":  update.ChangedBy,
	})
	return nil
}

// Format renders update as a human-readable line
func Format(update *models.StatusUpdateMessage) string {
	timestamp := update.Timestamp.Format("2006-01-02 15:04:05")

	switch update.NewStatus {
	case models.StatusPreparing:
		return fmt.Sprintf("[%s] Order %s is now being prepared.", timestamp, update.OrderID)
	case models.StatusReady:
		return fmt.Sprintf("[%s] Order %s is ready.", timestamp, update.OrderID)
	case models.StatusDelivered:
		return fmt.Sprintf("[%s] Order %s has been delivered. Enjoy your meal!", timestamp, update.OrderID)
	case models.StatusCancelled:
		return fmt.Sprintf("[%s] Order %s has been cancelled.", timestamp, update.OrderID)
	default:
		return fmt.Sprintf("[%s] Order %s status changed from '%s' to '%s' by %s.",
			timestamp, update.OrderID, update.OldStatus, update.NewStatus, update.ChangedBy)
	}
}
