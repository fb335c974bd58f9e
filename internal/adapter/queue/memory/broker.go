// Package memory provides a loopback broker for tests and local runs
// without a RabbitMQ instance.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

// Broker delivers published messages to the registered consumer over a
// buffered channel, mimicking the topic-exchange-with-wildcard-binding setup:
// every routing key reaches the one queue.
type Broker struct {
	log *zap.Logger

	mu        sync.Mutex
	messages  chan port.Message
	quit      chan struct{}
	started   bool
	consuming bool
}

func NewBroker(log *zap.Logger) *Broker {
	return &Broker{log: log}
}

func (b *Broker) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	b.messages = make(chan port.Message, 64)
	b.quit = make(chan struct{})
	b.started = true
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.stopLocked()
	b.started = false
	return nil
}

func (b *Broker) Send(ctx context.Context, routingKey string, payload any) error {
	if err := b.Start(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	select {
	case b.messages <- port.Message{RoutingKey: routingKey, Body: body}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, ctx.Err())
	}
}

func (b *Broker) Consume(ctx context.Context, handler func(msg port.Message) error) error {
	if err := b.Start(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	if b.consuming {
		b.mu.Unlock()
		return nil
	}
	b.consuming = true
	messages, quit := b.messages, b.quit
	b.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-messages:
				if err := handler(msg); err != nil {
					b.log.Error("Message handling failed, dropping",
						zap.String("key", msg.RoutingKey),
						zap.Error(err))
				}
			case <-quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (b *Broker) StopConsuming() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

func (b *Broker) stopLocked() {
	if b.consuming {
		close(b.quit)
		b.quit = make(chan struct{})
		b.consuming = false
	}
}
