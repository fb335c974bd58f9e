// Package domain holds the task entity, its lifecycle rules and the errors
// the rest of the system dispatches on.
package domain

import (
	"errors"
	"fmt"
)

// ErrBrokerUnavailable is returned when the message broker transport cannot
// be reached or no channel exists after a connect attempt. Callers may retry.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// TaskNotFoundError is returned for a query or update against an oid that
// was never persisted.
type TaskNotFoundError struct {
	Oid string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task with that oid does not exist - %s", e.Oid)
}

// HandlerNotFoundError indicates a mediator misconfiguration: a command,
// query or event kind with no registered handler.
type HandlerNotFoundError struct {
	Kind string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for kind %q", e.Kind)
}

// InvalidTransitionError is returned when a status change would move the
// lifecycle backwards or skip a stage.
type InvalidTransitionError struct {
	Oid  string
	From TaskStatus
	To   TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid status transition %s -> %s", e.Oid, e.From, e.To)
}
