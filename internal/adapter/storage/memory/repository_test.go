package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

func TestWithinTx_CommitsOnNormalExit(t *testing.T) {
	uow := NewUnitOfWork()
	ctx := context.Background()
	task := domain.NewTask("probe")

	err := uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		return repo.Add(ctx, task)
	})
	require.NoError(t, err)

	stored, ok := uow.Peek(task.Oid)
	require.True(t, ok)
	assert.Equal(t, "probe", stored.Description)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	uow := NewUnitOfWork()
	ctx := context.Background()
	task := domain.NewTask("probe")
	boom := errors.New("boom")

	err := uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		if err := repo.Add(ctx, task); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := uow.Peek(task.Oid)
	assert.False(t, ok, "the probe write must not be visible after rollback")
}

func TestGet_UnknownOid(t *testing.T) {
	uow := NewUnitOfWork()
	ctx := context.Background()

	err := uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		_, err := repo.Get(ctx, "missing")
		return err
	})

	var notFound *domain.TaskNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Oid)
}

func TestUpdate_UnknownOid(t *testing.T) {
	uow := NewUnitOfWork()
	ctx := context.Background()
	task := domain.NewTask("never added")

	err := uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		return repo.Update(ctx, task)
	})

	var notFound *domain.TaskNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestFetchAll_AppliesStatusAndLimit(t *testing.T) {
	uow := NewUnitOfWork()
	ctx := context.Background()

	require.NoError(t, uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		for i := 0; i < 10; i++ {
			task := domain.NewTask("completed")
			task.Status = domain.TaskStatusCompleted
			if err := repo.Add(ctx, task); err != nil {
				return err
			}
		}
		for i := 0; i < 3; i++ {
			if err := repo.Add(ctx, domain.NewTask("pending")); err != nil {
				return err
			}
		}
		return nil
	}))

	var tasks []*domain.Task
	require.NoError(t, uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		var err error
		tasks, err = repo.FetchAll(ctx, domain.GetTasksFilters{Limit: 5, Status: domain.TaskStatusCompleted})
		return err
	}))

	assert.Len(t, tasks, 5)
	for _, task := range tasks {
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	}
}
