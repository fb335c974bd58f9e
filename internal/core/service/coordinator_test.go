package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/service"
)

type pipeline struct {
	*fixture
	coordinator *service.Coordinator
}

func startPipeline(t *testing.T, workers int) *pipeline {
	t.Helper()
	f := newFixture(t)
	coordinator := service.NewCoordinator(f.broker, f.uow, nil, workers, 8, zap.NewNop())
	require.NoError(t, coordinator.Start(context.Background()))
	t.Cleanup(coordinator.Stop)
	return &pipeline{fixture: f, coordinator: coordinator}
}

func waitForStatus(t *testing.T, p *pipeline, oid string, want domain.TaskStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		stored, ok := p.uow.Peek(oid)
		return ok && stored.Status == want
	}, 3*time.Second, 10*time.Millisecond, "task %s never reached %s", oid, want)
}

func TestCoordinator_SingleWorkerProcessesAllTasks(t *testing.T) {
	p := startPipeline(t, 1)

	var oids []string
	for i := 0; i < 3; i++ {
		task := createTask(t, p.fixture, fmt.Sprintf("task %d", i))
		oids = append(oids, task.Oid)
	}

	// A pool of one must still drive every task to a terminal status.
	for _, oid := range oids {
		waitForStatus(t, p, oid, domain.TaskStatusCompleted)
	}
}

func TestCoordinator_PersistsTimingWithFinalStatus(t *testing.T) {
	p := startPipeline(t, 2)

	task := createTask(t, p.fixture, "timed")
	waitForStatus(t, p, task.Oid, domain.TaskStatusCompleted)

	stored, ok := p.uow.Peek(task.Oid)
	require.True(t, ok)
	require.NotNil(t, stored.StartTime, "start time travels with the final status")
	require.NotNil(t, stored.ExecTime, "exec time travels with the final status")
	assert.GreaterOrEqual(t, *stored.ExecTime, time.Duration(0))
}

func TestCoordinator_ExecutionFailureDoesNotStallDispatch(t *testing.T) {
	p := startPipeline(t, 1)
	ctx := context.Background()

	// A snapshot already in a terminal status cannot run; execution fails
	// and no persistence is attempted.
	require.NoError(t, p.broker.Send(ctx, service.RoutingKeyTaskCreated, map[string]string{
		"oid":         "poison",
		"description": "cannot run",
		"status":      "completed",
	}))

	task := createTask(t, p.fixture, "after the poison message")
	waitForStatus(t, p, task.Oid, domain.TaskStatusCompleted)

	_, ok := p.uow.Peek("poison")
	assert.False(t, ok, "a failed execution writes nothing")
}

func TestCoordinator_PersistFailureDoesNotStallDispatch(t *testing.T) {
	p := startPipeline(t, 1)
	ctx := context.Background()

	// Valid snapshot for a row that was never persisted: execution succeeds
	// but the completion-bridge write fails with TaskNotFound.
	require.NoError(t, p.broker.Send(ctx, service.RoutingKeyTaskCreated, map[string]string{
		"oid":         "ghost",
		"description": "no row",
		"status":      "queued",
	}))

	task := createTask(t, p.fixture, "after the ghost task")
	waitForStatus(t, p, task.Oid, domain.TaskStatusCompleted)
}

func TestCoordinator_IgnoresForeignRoutingKeys(t *testing.T) {
	p := startPipeline(t, 1)
	ctx := context.Background()

	require.NoError(t, p.broker.Send(ctx, "task.deleted", map[string]string{"oid": "x"}))

	task := createTask(t, p.fixture, "normal traffic")
	waitForStatus(t, p, task.Oid, domain.TaskStatusCompleted)
}

func TestCoordinator_StopWaitsForInFlightWork(t *testing.T) {
	f := newFixture(t)
	coordinator := service.NewCoordinator(f.broker, f.uow, nil, 1, 8, zap.NewNop())
	require.NoError(t, coordinator.Start(context.Background()))

	var oids []string
	for i := 0; i < 3; i++ {
		oids = append(oids, createTask(t, f, fmt.Sprintf("drain %d", i)).Oid)
	}

	require.Eventually(t, func() bool {
		for _, oid := range oids {
			stored, ok := f.uow.Peek(oid)
			if !ok || !stored.Status.IsTerminal() {
				return false
			}
		}
		return true
	}, 3*time.Second, 10*time.Millisecond)

	// Stop returns only after workers and the persistence writer are done,
	// and repeated calls are no-ops.
	coordinator.Stop()
	coordinator.Stop()

	for _, oid := range oids {
		stored, ok := f.uow.Peek(oid)
		require.True(t, ok)
		assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	}
}
