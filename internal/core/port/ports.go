// Package port provides behavior interfaces that connect services to
// adapters (broker, storage, cache).
package port

import (
	"context"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
)

// Message is one broker delivery: the routing key it was published under and
// the raw payload. Messages are transient and never persisted.
type Message struct {
	RoutingKey string
	Body       []byte
}

// MessageBroker defines how messages are published and consumed over one
// durable topic exchange with one durable queue bound to it.
type MessageBroker interface {
	// Start establishes the connection and declares the exchange, queue and
	// binding. Idempotent; repeated calls while started are no-ops.
	Start(ctx context.Context) error

	// Close releases channel and connection. Tolerant of never being started.
	Close() error

	// Send publishes payload as a persistent JSON message under routingKey,
	// connecting lazily if Start was not called yet.
	Send(ctx context.Context, routingKey string, payload any) error

	// Consume registers handler for inbound messages. A delivery is
	// acknowledged only after handler returns nil; a handler error is logged
	// and the message is dropped, never redelivered into a crash loop.
	// Consume returns once the registration is active.
	Consume(ctx context.Context, handler func(msg Message) error) error

	// StopConsuming cancels the active consumption registration. Idempotent.
	StopConsuming() error
}

// TaskRepository defines how tasks are persisted within one transaction.
type TaskRepository interface {
	Add(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, oid string) (*domain.Task, error)
	FetchAll(ctx context.Context, filters domain.GetTasksFilters) ([]*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
}

// UnitOfWork scopes one transactional session around repository operations:
// commit when fn returns nil, rollback when it errors, release either way.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(repo TaskRepository) error) error
}

// TaskCache is a best-effort read-through cache for task detail lookups.
type TaskCache interface {
	Get(ctx context.Context, oid string) (*domain.Task, bool)
	Set(ctx context.Context, task *domain.Task) error
}
