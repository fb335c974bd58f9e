// Package redis implements the task detail cache on the Redis key-value
// storage.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/storage/redis/v3"
	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
)

const cacheTTL = 5 * time.Minute

// TaskCache is a best-effort read-through cache keyed by task oid. Misses and
// storage errors are treated alike; the database stays authoritative.
type TaskCache struct {
	storage *redis.Storage
	log     *zap.Logger
}

func NewTaskCache(storage *redis.Storage, log *zap.Logger) *TaskCache {
	return &TaskCache{storage: storage, log: log}
}

func (c *TaskCache) Get(_ context.Context, oid string) (*domain.Task, bool) {
	data, err := c.storage.Get(cacheKey(oid))
	if err != nil || len(data) == 0 {
		return nil, false
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		c.log.Warn("Dropping undecodable cache entry", zap.String("task_oid", oid), zap.Error(err))
		return nil, false
	}
	return &task, true
}

func (c *TaskCache) Set(_ context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return c.storage.Set(cacheKey(task.Oid), data, cacheTTL)
}

func cacheKey(oid string) string {
	return "task:" + oid
}
