package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
)

// taskRepository persists tasks through one pgx transaction. Instances are
// created per unit-of-work scope and never outlive their transaction.
type taskRepository struct {
	tx  pgx.Tx
	qb  squirrel.StatementBuilderType
	log *zap.Logger
}

func (r *taskRepository) Add(ctx context.Context, task *domain.Task) error {
	query, args, err := r.qb.
		Insert("tasks").
		Columns("task_oid", "description", "status", "created_at", "start_time", "exec_time_ns").
		Values(task.Oid, task.Description, task.Status, task.CreatedAt, task.StartTime, execTimeNs(task)).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.tx.Exec(ctx, query, args...); err != nil {
		r.log.Error("Failed to insert task", zap.String("task_oid", task.Oid), zap.Error(err))
		return err
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, oid string) (*domain.Task, error) {
	query, args, err := r.qb.
		Select("task_oid", "description", "status", "created_at", "start_time", "exec_time_ns").
		From("tasks").
		Where(squirrel.Eq{"task_oid": oid}).
		ToSql()
	if err != nil {
		return nil, err
	}

	task, err := scanTask(r.tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.TaskNotFoundError{Oid: oid}
	}
	return task, err
}

func (r *taskRepository) FetchAll(ctx context.Context, filters domain.GetTasksFilters) ([]*domain.Task, error) {
	query, args, err := r.qb.
		Select("task_oid", "description", "status", "created_at", "start_time", "exec_time_ns").
		From("tasks").
		Where(squirrel.Eq{"status": filters.Status}).
		OrderBy("created_at DESC").
		Limit(uint64(filters.Limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	query, args, err := r.qb.
		Update("tasks").
		Set("status", task.Status).
		Set("start_time", task.StartTime).
		Set("exec_time_ns", execTimeNs(task)).
		Where(squirrel.Eq{"task_oid": task.Oid}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to update task", zap.String("task_oid", task.Oid), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.TaskNotFoundError{Oid: task.Oid}
	}
	return nil
}

func execTimeNs(task *domain.Task) *int64 {
	if task.ExecTime == nil {
		return nil
	}
	ns := task.ExecTime.Nanoseconds()
	return &ns
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task   domain.Task
		execNs *int64
	)
	if err := row.Scan(&task.Oid, &task.Description, &task.Status, &task.CreatedAt, &task.StartTime, &execNs); err != nil {
		return nil, err
	}
	if execNs != nil {
		d := time.Duration(*execNs)
		task.ExecTime = &d
	}
	return &task, nil
}
