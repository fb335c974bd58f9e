// Package service contains the command/query/event dispatch and the
// execution coordinator that drive the task lifecycle.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
)

// Command mutates state and may raise domain events.
type Command interface {
	CommandKind() string
}

// Query reads state and returns a result.
type Query interface {
	QueryKind() string
}

// CommandHandler handles one command kind. Raised events are returned to the
// mediator, which dispatches them in emission order.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (any, []domain.Event, error)
}

type QueryHandler interface {
	Handle(ctx context.Context, query Query) (any, error)
}

type EventHandler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// Mediator routes commands and queries to a single handler and events to a
// fan-out of handlers. The dispatch tables are populated once at startup and
// never mutated at request time.
type Mediator struct {
	commands map[string]CommandHandler
	queries  map[string]QueryHandler
	events   map[string][]EventHandler
	log      *zap.Logger
}

func NewMediator(log *zap.Logger) *Mediator {
	return &Mediator{
		commands: make(map[string]CommandHandler),
		queries:  make(map[string]QueryHandler),
		events:   make(map[string][]EventHandler),
		log:      log,
	}
}

func (m *Mediator) RegisterCommand(kind string, handler CommandHandler) {
	m.commands[kind] = handler
}

func (m *Mediator) RegisterQuery(kind string, handler QueryHandler) {
	m.queries[kind] = handler
}

func (m *Mediator) RegisterEvent(kind string, handlers ...EventHandler) {
	m.events[kind] = append(m.events[kind], handlers...)
}

// HandleCommand invokes the handler for the command's kind and forwards every
// raised event to HandleEvent in emission order. The result is returned even
// when an event handler failed, alongside that failure.
func (m *Mediator) HandleCommand(ctx context.Context, cmd Command) (any, error) {
	handler, ok := m.commands[cmd.CommandKind()]
	if !ok {
		return nil, &domain.HandlerNotFoundError{Kind: cmd.CommandKind()}
	}

	result, events, err := handler.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		if err := m.HandleEvent(ctx, event); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (m *Mediator) HandleQuery(ctx context.Context, query Query) (any, error) {
	handler, ok := m.queries[query.QueryKind()]
	if !ok {
		return nil, &domain.HandlerNotFoundError{Kind: query.QueryKind()}
	}
	return handler.Handle(ctx, query)
}

// HandleEvent invokes every handler registered for the event's kind in
// registration order. An event nobody subscribed to is a no-op. A handler
// failure does not stop the remaining handlers; the first failure is returned.
func (m *Mediator) HandleEvent(ctx context.Context, event domain.Event) error {
	var firstErr error
	for _, handler := range m.events[event.EventKind()] {
		if err := handler.Handle(ctx, event); err != nil {
			m.log.Error("Event handler failed",
				zap.String("event", event.EventKind()),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
