package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

// ErrStopped is returned to the broker for messages that arrive after
// shutdown began; the broker drops them without requeue.
var ErrStopped = errors.New("coordinator stopped")

// completion crosses from a worker back to the persistence writer. Ownership
// of the task snapshot transfers with it; done carries the write outcome back
// so the worker observes and logs persistence failures on its side.
type completion struct {
	task domain.Task
	done chan error
}

// Coordinator bridges the broker consumer and the worker pool. The consumer
// enqueues task snapshots onto a bounded channel, workers block on receive
// and execute, and a single persistence writer owns all database writes so
// the transactional session is never touched from a worker goroutine.
//
// Per task: enqueued -> dispatched -> executing -> persisted, or
// executing -> execution-failed (logged, no write), or
// dispatched -> persist-failed (logged, result discarded). A failure in any
// stage never terminates the loops.
type Coordinator struct {
	broker port.MessageBroker
	uow    port.UnitOfWork
	cache  port.TaskCache
	log    *zap.Logger

	workers     int
	queue       chan domain.Task
	completions chan completion
	quit        chan struct{}

	wg        sync.WaitGroup
	writerWg  sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewCoordinator builds a coordinator with a fixed worker count and a bounded
// work queue. The cache may be nil.
func NewCoordinator(broker port.MessageBroker, uow port.UnitOfWork, cache port.TaskCache, workers, queueSize int, log *zap.Logger) *Coordinator {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Coordinator{
		broker:      broker,
		uow:         uow,
		cache:       cache,
		log:         log,
		workers:     workers,
		queue:       make(chan domain.Task, queueSize),
		completions: make(chan completion, queueSize),
		quit:        make(chan struct{}),
	}
}

// Start launches the persistence writer, the worker pool and the broker
// consumer. It returns once everything is registered, not once anything has
// been consumed.
func (c *Coordinator) Start(ctx context.Context) error {
	var err error
	c.startOnce.Do(func() {
		c.writerWg.Add(1)
		go c.persistLoop(ctx)

		for i := 0; i < c.workers; i++ {
			c.wg.Add(1)
			go c.workerLoop(i)
		}

		err = c.broker.Consume(ctx, c.handleMessage)
		if err == nil {
			c.log.Info("Coordinator started", zap.Int("workers", c.workers), zap.Int("queue_size", cap(c.queue)))
		}
	})
	return err
}

// Stop cancels the broker consumption, drains already-enqueued work, waits
// for in-flight executions and their persistence writes, then returns.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		if err := c.broker.StopConsuming(); err != nil {
			c.log.Warn("Failed to cancel consumption", zap.Error(err))
		}
		close(c.quit)
		c.wg.Wait()
		close(c.completions)
		c.writerWg.Wait()
		c.log.Info("Coordinator stopped")
	})
}

// handleMessage runs on the broker's delivery stream. The enqueue blocks when
// the queue is full, which delays the ack and lets the broker apply
// backpressure through its prefetch window.
func (c *Coordinator) handleMessage(msg port.Message) error {
	if msg.RoutingKey != RoutingKeyTaskCreated {
		return nil
	}

	var payload taskCreatedMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return fmt.Errorf("decode %s message: %w", msg.RoutingKey, err)
	}

	task := domain.Task{
		Oid:         payload.Oid,
		Description: payload.Description,
		Status:      domain.TaskStatus(payload.Status),
	}

	select {
	case c.queue <- task:
		c.log.Info("Task enqueued for execution", zap.String("task_oid", task.Oid))
		return nil
	case <-c.quit:
		return ErrStopped
	}
}

func (c *Coordinator) workerLoop(id int) {
	defer c.wg.Done()

	for {
		select {
		case task := <-c.queue:
			c.execute(id, task)
		case <-c.quit:
			// Drain what was already enqueued, then exit.
			for {
				select {
				case task := <-c.queue:
					c.execute(id, task)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) execute(worker int, task domain.Task) {
	c.log.Info("Executing task", zap.String("task_oid", task.Oid), zap.Int("worker", worker))

	if err := task.Run(); err != nil {
		// Execution failed: log and abort, the task keeps its
		// last-persisted status.
		c.log.Error("Task execution failed",
			zap.String("task_oid", task.Oid),
			zap.Int("worker", worker),
			zap.Error(err))
		return
	}

	comp := completion{task: task, done: make(chan error, 1)}
	c.completions <- comp

	if err := <-comp.done; err != nil {
		c.log.Error("Task persistence failed, result discarded",
			zap.String("task_oid", task.Oid),
			zap.Int("worker", worker),
			zap.Error(err))
		return
	}

	c.log.Info("Task executed and persisted",
		zap.String("task_oid", task.Oid),
		zap.String("status", string(task.Status)),
		zap.Duration("exec_time", *task.ExecTime))
}

// persistLoop is the single owner of the persistence session for execution
// results. It runs until the completions channel is closed during Stop.
func (c *Coordinator) persistLoop(ctx context.Context) {
	defer c.writerWg.Done()

	// In-flight writes must complete even if the root context is canceled
	// while the pool drains.
	writeCtx := context.WithoutCancel(ctx)

	for comp := range c.completions {
		comp.done <- c.persist(writeCtx, comp.task)
	}
}

func (c *Coordinator) persist(ctx context.Context, task domain.Task) error {
	var stored *domain.Task
	err := c.uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		var err error
		stored, err = repo.Get(ctx, task.Oid)
		if err != nil {
			return err
		}
		if stored.Status.IsTerminal() {
			return fmt.Errorf("stale update for task %s: already %s", task.Oid, stored.Status)
		}
		stored.Status = task.Status
		stored.StartTime = task.StartTime
		stored.ExecTime = task.ExecTime
		return repo.Update(ctx, stored)
	})
	if err != nil {
		return err
	}

	if c.cache != nil {
		if cacheErr := c.cache.Set(ctx, stored); cacheErr != nil {
			c.log.Warn("Failed to refresh task cache", zap.String("task_oid", task.Oid), zap.Error(cacheErr))
		}
	}
	return nil
}
