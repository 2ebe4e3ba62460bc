package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// maxDeliveryAttempts bounds redelivery of a failing message. Once the
// broker's x-death count reaches this number the message is rejected
// without requeue, which routes it to the dead letter queue.
const maxDeliveryAttempts = 3

// MessageHandler processes a single decoded event.
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer reads events from a queue and dispatches them by event type.
// Handlers must be registered before Start is called.
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer declares the queue and returns a consumer bound to it.
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}, nil
}

// Subscribe binds the queue to an exchange under a routing key pattern,
// declaring the exchange if it does not exist yet.
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")
	return nil
}

// RegisterHandler maps an event type to a handler. Registering the same
// type twice replaces the earlier handler.
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start begins consuming in a background goroutine. The goroutine exits
// when ctx is cancelled or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.rmq.Channel().Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go c.consumeLoop(ctx, deliveries)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return
		case msg, ok := <-deliveries:
			if !ok {
				c.logger.Warn().Str("queue", c.queueName).Msg("delivery channel closed")
				return
			}
			c.settle(msg, c.dispatch(ctx, msg))
		}
	}
}

type deliveryOutcome int

const (
	outcomeAck deliveryOutcome = iota
	outcomeRetry
	outcomeDiscard
)

// dispatch decodes the delivery and runs the registered handler.
func (c *Consumer) dispatch(ctx context.Context, msg amqp.Delivery) deliveryOutcome {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		return outcomeDiscard
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return outcomeAck
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	if err := handler(WithCorrelationID(ctx, event.CorrelationID), &event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")

		if attempts := deliveryAttempts(msg); attempts >= maxDeliveryAttempts {
			c.logger.Warn().
				Str("event_id", event.ID).
				Int("attempts", attempts).
				Msg("max delivery attempts exceeded, sending to DLQ")
			return outcomeDiscard
		}
		return outcomeRetry
	}

	return outcomeAck
}

func (c *Consumer) settle(msg amqp.Delivery, outcome deliveryOutcome) {
	switch outcome {
	case outcomeAck:
		msg.Ack(false)
	case outcomeRetry:
		msg.Nack(false, true)
	case outcomeDiscard:
		msg.Reject(false)
	}
}

// deliveryAttempts reads the broker-maintained x-death header, which
// counts how many times this message has been dead-lettered back.
func deliveryAttempts(msg amqp.Delivery) int {
	deaths, ok := msg.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, death := range deaths {
		table, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		if count, ok := table["count"].(int64); ok {
			return int(count)
		}
	}
	return 0
}
