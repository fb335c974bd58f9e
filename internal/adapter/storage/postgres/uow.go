// Package postgres implements the task repository and unit of work on
// PostgreSQL via pgx.
package postgres

import (
	"context"

	"go.uber.org/zap"

	postgresql "github.com/crabzie/RabbitMQ-Task-Pipeline/config/storage/postgresql"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

// UnitOfWork opens one transaction per logical operation: commit when fn
// returns nil, rollback when it errors, release on scope exit either way.
type UnitOfWork struct {
	db  *postgresql.DB
	log *zap.Logger
}

func NewUnitOfWork(db *postgresql.DB, log *zap.Logger) *UnitOfWork {
	return &UnitOfWork{db: db, log: log}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(repo port.TaskRepository) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return err
	}

	repo := &taskRepository{tx: tx, qb: *u.db.QueryBuilder, log: u.log}

	if err := fn(repo); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			u.log.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit(ctx)
}
