package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-system/internal/logger"
)

// ErrDiscard marks a delivery that can never be processed. It is rejected
// without requeue and lands in the queue's dead-letter exchange, if any.
var ErrDiscard = errors.New("discard message")

// ErrRequeue marks a delivery this consumer declines but another may take.
// It is always requeued, however often it has been redelivered.
var ErrRequeue = errors.New("requeue message")

// Handler processes one delivery body
type Handler func(ctx context.Context, body []byte) error

// Consumer reads deliveries from a single queue
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int

	mu sync.Mutex
	ch *amqp091.Channel
}

// NewConsumer creates a consumer for queueName
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// Run consumes until ctx is cancelled or the connection cannot be restored
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", map[string]interface{}{
				"queue": c.queueName,
			})
			return ctx.Err()
		}
		if err == nil {
			continue
		}
		return err
	}
}

// consume returns nil when the delivery channel closes and consuming can
// resume on a fresh channel
func (c *Consumer) consume(ctx context.Context, handler Handler) error {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	// Consumers never share the publishing channel.
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return err
	}
	c.setChannel(ch)
	defer func() {
		c.setChannel(nil)
		ch.Close()
	}()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", c.queueName, err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from queue %s", c.queueName),
		"", map[string]interface{}{
			"queue":    c.queueName,
			"consumer": c.consumerTag,
			"prefetch": c.prefetch,
		})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				c.logger.Error("consumer_channel_closed", "Delivery channel closed, reconnecting", "", nil, map[string]interface{}{
					"queue": c.queueName,
				})
				if c.conn.IsClosed() {
					if err := c.conn.Reconnect(); err != nil {
						return fmt.Errorf("failed to reconnect after channel closed: %w", err)
					}
				}
				return nil
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery, handler Handler) {
	start := time.Now()
	requestID := d.CorrelationId
	if requestID == "" {
		requestID = logger.GenerateRequestID()
	}

	processingCtx, cancel := context.WithTimeout(logger.WithRequestID(ctx, requestID), 30*time.Second)
	defer cancel()

	err := handler(processingCtx, d.Body)
	details := map[string]interface{}{
		"queue":        c.queueName,
		"routing_key":  d.RoutingKey,
		"duration_ms":  time.Since(start).Milliseconds(),
		"delivery_tag": d.DeliveryTag,
	}

	switch {
	case err == nil:
		c.logger.Debug("message_processed", "Processed message", requestID, details)
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack message", requestID, ackErr, nil)
		}
	case errors.Is(err, ErrDiscard):
		c.logger.Error("message_discarded", "Rejecting unprocessable message", requestID, err, details)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", requestID, nackErr, nil)
		}
	case errors.Is(err, ErrRequeue):
		c.logger.Debug("message_requeued", err.Error(), requestID, details)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", requestID, nackErr, nil)
		}
	default:
		// Requeued once; a second failure goes to the dead-letter exchange.
		c.logger.Error("message_processing_failed", "Failed to process message", requestID, err, details)
		if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", requestID, nackErr, nil)
		}
	}
}

// Decode unmarshals a JSON body, marking malformed payloads as ErrDiscard
func Decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDiscard, err)
	}
	return nil
}

// Close cancels the consumer. The connection is owned by the caller.
func (c *Consumer) Close() error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		return nil
	}
	if err := ch.Cancel(c.consumerTag, false); err != nil {
		return fmt.Errorf("failed to cancel consumer %s: %w", c.consumerTag, err)
	}
	return nil
}

func (c *Consumer) setChannel(ch *amqp091.Channel) {
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
}
