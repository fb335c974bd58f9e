package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask("demo")

	assert.NotEmpty(t, task.Oid)
	assert.Equal(t, "demo", task.Description)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Nil(t, task.StartTime)
	assert.Nil(t, task.ExecTime)

	events := task.PullEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(NewTaskCreatedEvent)
	require.True(t, ok)
	assert.Same(t, task, created.Task)

	assert.Empty(t, task.PullEvents(), "events are cleared after the first pull")
}

func TestSetStatus_ForwardOnly(t *testing.T) {
	task := NewTask("demo")

	require.NoError(t, task.SetStatus(TaskStatusQueued))
	require.NoError(t, task.SetStatus(TaskStatusRunning))
	require.NoError(t, task.SetStatus(TaskStatusCompleted))

	// Terminal state is frozen.
	err := task.SetStatus(TaskStatusQueued)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, TaskStatusCompleted, invalid.From)
	assert.Equal(t, TaskStatusCompleted, task.Status)
}

func TestSetStatus_CannotSkipQueued(t *testing.T) {
	task := NewTask("demo")

	err := task.SetStatus(TaskStatusRunning)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, TaskStatusPending, task.Status)
}

func TestSetStatus_RejectsUnknownStatus(t *testing.T) {
	task := NewTask("demo")

	err := task.SetStatus(TaskStatus("bogus"))
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestRun_RecordsTiming(t *testing.T) {
	task := NewTask("demo")
	require.NoError(t, task.SetStatus(TaskStatusQueued))

	require.NoError(t, task.Run())

	assert.Equal(t, TaskStatusCompleted, task.Status)
	require.NotNil(t, task.StartTime)
	require.NotNil(t, task.ExecTime)
	assert.GreaterOrEqual(t, *task.ExecTime, time.Duration(0))
}

func TestRun_FailsFromTerminalStatus(t *testing.T) {
	task := NewTask("demo")
	require.NoError(t, task.SetStatus(TaskStatusQueued))
	require.NoError(t, task.Run())

	err := task.Run()
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestSnapshot_DropsEvents(t *testing.T) {
	task := NewTask("demo")

	snap := task.Snapshot()
	assert.Empty(t, snap.PullEvents())
	require.Len(t, task.PullEvents(), 1, "original keeps its events")

	snap.Description = "changed"
	assert.Equal(t, "demo", task.Description, "snapshot is an independent copy")
}
