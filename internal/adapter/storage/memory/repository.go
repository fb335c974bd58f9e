// Package memory implements the task repository and unit of work in memory,
// for tests and local runs without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

// UnitOfWork guards the store with a mutex and emulates transactional
// semantics by snapshotting the map: when fn errors, the snapshot is
// restored, so probe writes made inside a failed scope stay invisible.
type UnitOfWork struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
}

func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{tasks: make(map[string]domain.Task)}
}

func (u *UnitOfWork) WithinTx(_ context.Context, fn func(repo port.TaskRepository) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	snapshot := make(map[string]domain.Task, len(u.tasks))
	for oid, task := range u.tasks {
		snapshot[oid] = task
	}

	if err := fn(&taskRepository{tasks: u.tasks}); err != nil {
		u.tasks = snapshot
		return err
	}
	return nil
}

// Peek returns the stored task without a transaction scope. Test helper.
func (u *UnitOfWork) Peek(oid string) (domain.Task, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	task, ok := u.tasks[oid]
	return task, ok
}

type taskRepository struct {
	tasks map[string]domain.Task
}

func (r *taskRepository) Add(_ context.Context, task *domain.Task) error {
	r.tasks[task.Oid] = task.Snapshot()
	return nil
}

func (r *taskRepository) Get(_ context.Context, oid string) (*domain.Task, error) {
	task, ok := r.tasks[oid]
	if !ok {
		return nil, &domain.TaskNotFoundError{Oid: oid}
	}
	return &task, nil
}

func (r *taskRepository) FetchAll(_ context.Context, filters domain.GetTasksFilters) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for _, task := range r.tasks {
		if task.Status != filters.Status {
			continue
		}
		t := task
		tasks = append(tasks, &t)
		if len(tasks) >= filters.Limit {
			break
		}
	}
	return tasks, nil
}

func (r *taskRepository) Update(_ context.Context, task *domain.Task) error {
	if _, ok := r.tasks[task.Oid]; !ok {
		return &domain.TaskNotFoundError{Oid: task.Oid}
	}
	r.tasks[task.Oid] = task.Snapshot()
	return nil
}
