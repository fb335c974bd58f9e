// Package rabbitmq implements the message broker port on top of AMQP 0-9-1.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	config "github.com/crabzie/RabbitMQ-Task-Pipeline/config/utils"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

const consumerTag = "task-pipeline"

// Broker owns one connection and one channel. The channel is not safe for
// concurrent use from worker threads; only the consumer registration and the
// event-handler publisher touch it.
type Broker struct {
	url      string
	exchange string
	queue    string
	log      *zap.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	started   bool
	consuming bool
}

func NewBroker(cfg *config.Broker, log *zap.Logger) *Broker {
	return &Broker{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		log:      log,
	}
}

// Start dials the broker and declares the durable topic exchange and the
// durable queue bound with the wildcard key. Repeated calls are no-ops.
// Connection failures are not retried here; the caller may retry.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked(ctx)
}

func (b *Broker) startLocked(ctx context.Context) error {
	if b.started {
		return nil
	}

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", domain.ErrBrokerUnavailable, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: open channel: %v", domain.ErrBrokerUnavailable, err)
	}

	// Prefetch one unacked delivery per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("%w: set qos: %v", domain.ErrBrokerUnavailable, err)
	}

	if err := ch.ExchangeDeclare(
		b.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // auto-delete
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		conn.Close()
		return fmt.Errorf("%w: declare exchange: %v", domain.ErrBrokerUnavailable, err)
	}

	if _, err := ch.QueueDeclare(
		b.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	); err != nil {
		conn.Close()
		return fmt.Errorf("%w: declare queue: %v", domain.ErrBrokerUnavailable, err)
	}

	if err := ch.QueueBind(b.queue, "#", b.exchange, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("%w: bind queue: %v", domain.ErrBrokerUnavailable, err)
	}

	b.conn = conn
	b.ch = ch
	b.started = true
	b.log.Info("Connected to RabbitMQ",
		zap.String("exchange", b.exchange),
		zap.String("queue", b.queue))

	return nil
}

// Close releases the channel and connection. Safe to call when never started.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch != nil {
		if err := b.ch.Close(); err != nil {
			b.log.Warn("Failed to close channel", zap.Error(err))
		}
		b.ch = nil
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil {
			return err
		}
	}
	b.conn = nil
	b.started = false
	b.consuming = false
	return nil
}

// Send publishes payload as a persistent JSON message under routingKey,
// connecting lazily if needed.
func (b *Broker) Send(ctx context.Context, routingKey string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.startLocked(ctx); err != nil {
		return err
	}
	if b.ch == nil {
		return fmt.Errorf("%w: no channel after connect", domain.ErrBrokerUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := b.ch.PublishWithContext(ctx,
		b.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	); err != nil {
		b.log.Error("Failed to publish message", zap.String("key", routingKey), zap.Error(err))
		return fmt.Errorf("%w: publish: %v", domain.ErrBrokerUnavailable, err)
	}

	b.log.Debug("Published message", zap.String("key", routingKey))
	return nil
}

// Consume registers handler for the queue and returns once the registration
// is active. Deliveries are acked only after handler returns nil; a handler
// error drops the message without requeue so one bad payload cannot loop.
func (b *Broker) Consume(ctx context.Context, handler func(msg port.Message) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.startLocked(ctx); err != nil {
		return err
	}

	deliveries, err := b.ch.Consume(
		b.queue,     // queue
		consumerTag, // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("%w: consume: %v", domain.ErrBrokerUnavailable, err)
	}
	b.consuming = true

	b.log.Info("Started consuming", zap.String("queue", b.queue))

	go func() {
		for d := range deliveries {
			msg := port.Message{RoutingKey: d.RoutingKey, Body: d.Body}

			if err := handler(msg); err != nil {
				b.log.Error("Message handling failed, dropping",
					zap.String("key", d.RoutingKey),
					zap.Error(err))
				if nackErr := d.Nack(false, false); nackErr != nil {
					b.log.Warn("Failed to nack message", zap.Error(nackErr))
				}
				continue
			}

			// A failed ack must not crash the consumer loop.
			if ackErr := d.Ack(false); ackErr != nil {
				b.log.Warn("Failed to ack message", zap.String("key", d.RoutingKey), zap.Error(ackErr))
			}
		}
		b.log.Info("Delivery stream closed")
	}()

	return nil
}

// StopConsuming cancels the consumer registration. Idempotent.
func (b *Broker) StopConsuming() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.consuming || b.ch == nil {
		return nil
	}
	if err := b.ch.Cancel(consumerTag, false); err != nil {
		return fmt.Errorf("cancel consumer: %w", err)
	}
	b.consuming = false
	return nil
}
