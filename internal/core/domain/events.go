package domain

// Event is a domain event raised by an entity and dispatched by the mediator.
type Event interface {
	EventKind() string
}

// EventKindTaskCreated identifies NewTaskCreatedEvent in the dispatch table.
const EventKindTaskCreated = "task.created"

// NewTaskCreatedEvent is raised when a task entity is constructed. The event
// carries the entity itself so the handler can persist and announce it.
type NewTaskCreatedEvent struct {
	Task *Task
}

func (NewTaskCreatedEvent) EventKind() string { return EventKindTaskCreated }
