package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker/v2"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

// Channel is the part of an AMQP channel the publisher needs
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// ChannelSource returns a live channel, reconnecting if needed
type ChannelSource func() (Channel, error)

// FromConnection adapts a Connection into a ChannelSource
func FromConnection(conn *Connection) ChannelSource {
	return func() (Channel, error) {
		if conn.IsClosed() {
			if err := conn.Reconnect(); err != nil {
				return nil, fmt.Errorf("failed to reconnect: %w", err)
			}
		}
		return conn.Channel(), nil
	}
}

// Publisher handles message publishing to RabbitMQ. Publishing goes through
// a circuit breaker so a broker outage fails fast instead of stalling callers.
type Publisher struct {
	channel ChannelSource
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *logger.Logger
}

// NewPublisher creates a new message publisher
func NewPublisher(channel ChannelSource, log *logger.Logger) *Publisher {
	settings := gobreaker.Settings{
		Name:        "rabbitmq-publisher",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit_state_changed",
				fmt.Sprintf("Circuit breaker %s: %s -> %s", name, from, to),
				"", map[string]interface{}{"from": from.String(), "to": to.String()})
		},
	}

	return &Publisher{
		channel: channel,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  log,
	}
}

// PublishOrderPlaced publishes a checkout event to the orders topic exchange
func (p *Publisher) PublishOrderPlaced(ctx context.Context, msg *models.OrderPlacedMessage) error {
	return p.publishMessage(ctx, OrdersExchange, models.OrderRoutingKey(msg.OrderType), msg, true)
}

// PublishStatusUpdate publishes a status change to the notifications fanout exchange
func (p *Publisher) PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error {
	return p.publishMessage(ctx, NotificationsExchange, "", msg, false)
}

func (p *Publisher) publishMessage(ctx context.Context, exchange, routingKey string, message interface{}, persistent bool) error {
	requestID := logger.RequestIDFromContext(ctx)

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deliveryMode := amqp091.Transient
	if persistent {
		deliveryMode = amqp091.Persistent
	}

	publishing := amqp091.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  deliveryMode,
		Timestamp:     time.Now(),
		CorrelationId: requestID,
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		ch, err := p.channel()
		if err != nil {
			return struct{}{}, err
		}

		pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		return struct{}{}, ch.PublishWithContext(pubCtx, exchange, routingKey, false, false, publishing)
	})
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to exchange %s", exchange),
			requestID, err, map[string]interface{}{
				"exchange":    exchange,
				"routing_key": routingKey,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published message to exchange %s", exchange),
		requestID, map[string]interface{}{
			"exchange":     exchange,
			"routing_key":  routingKey,
			"message_size": len(body),
		})

	return nil
}
