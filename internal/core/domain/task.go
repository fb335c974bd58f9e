package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// rank orders statuses along the lifecycle so transitions can be validated.
// Terminal statuses share a rank.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusQueued:
		return 1
	case TaskStatusRunning:
		return 2
	case TaskStatusCompleted, TaskStatusFailed:
		return 3
	}
	return -1
}

// IsTerminal reports whether no further transition is allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents a unit of work moving through the lifecycle
// pending -> queued -> running -> completed|failed
type Task struct {
	Oid         string         `json:"oid"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	ExecTime    *time.Duration `json:"exec_time,omitempty"`

	events []Event
}

// NewTask constructs a pending task and records a NewTaskCreatedEvent on it.
func NewTask(description string) *Task {
	task := &Task{
		Oid:         uuid.NewString(),
		Description: description,
		Status:      TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	task.recordEvent(NewTaskCreatedEvent{Task: task})
	return task
}

func (t *Task) recordEvent(e Event) {
	t.events = append(t.events, e)
}

// PullEvents returns the recorded domain events and clears them.
func (t *Task) PullEvents() []Event {
	events := t.events
	t.events = nil
	return events
}

// SetStatus advances the task status. Transitions are monotonic: a status
// never moves backwards and queued cannot be skipped on the way to running.
func (t *Task) SetStatus(status TaskStatus) error {
	from, to := t.Status.rank(), status.rank()
	if to < 0 || t.Status.IsTerminal() || to != from+1 {
		return &InvalidTransitionError{Oid: t.Oid, From: t.Status, To: status}
	}
	t.Status = status
	return nil
}

// Run executes the task. Start time is recorded when execution begins,
// exec time is the elapsed duration when it ends; both travel together with
// the final status into storage in a single update.
func (t *Task) Run() error {
	if err := t.SetStatus(TaskStatusRunning); err != nil {
		return err
	}
	start := time.Now().UTC()
	t.StartTime = &start

	// The work itself is pure time bookkeeping. Anything heavier belongs
	// behind this entity, not in the orchestration path.
	elapsed := time.Since(start)
	t.ExecTime = &elapsed

	return t.SetStatus(TaskStatusCompleted)
}

// Snapshot returns a copy of the task without pending events, safe to hand
// across goroutines by value.
func (t *Task) Snapshot() Task {
	c := *t
	c.events = nil
	return c
}
