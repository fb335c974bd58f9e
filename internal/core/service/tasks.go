package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/port"
)

// Dispatch table kinds. Closed set, registered once at startup.
const (
	CommandKindCreateTask = "task.create"
	QueryKindTaskDetail   = "task.detail"
	QueryKindTaskList     = "task.list"
)

// RoutingKeyTaskCreated is the broker routing key announcing a new task.
const RoutingKeyTaskCreated = "task.created"

// taskCreatedMessage is the wire payload for RoutingKeyTaskCreated. Stable
// across process restarts; consumers rely on these exact fields.
type taskCreatedMessage struct {
	Oid         string `json:"oid"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type CreateTaskCommand struct {
	Description string
}

func (CreateTaskCommand) CommandKind() string { return CommandKindCreateTask }

type GetTaskDetailQuery struct {
	Oid string
}

func (GetTaskDetailQuery) QueryKind() string { return QueryKindTaskDetail }

type GetTasksQuery struct {
	Filters domain.GetTasksFilters
}

func (GetTasksQuery) QueryKind() string { return QueryKindTaskList }

// CreateTaskCommandHandler constructs the entity; persistence and broker
// publication happen in the task-created event handler the mediator invokes
// next.
type CreateTaskCommandHandler struct{}

func (CreateTaskCommandHandler) Handle(_ context.Context, cmd Command) (any, []domain.Event, error) {
	create, ok := cmd.(CreateTaskCommand)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected command type %T", cmd)
	}

	task := domain.NewTask(create.Description)
	return task, task.PullEvents(), nil
}

// NewTaskCreatedEventHandler persists the task as queued and then publishes
// the announcement. Ordering is fixed: the row must exist before a consumer
// can react to the message. If publication fails after a successful persist
// the task stays durably queued but unannounced; the caller sees the error.
type NewTaskCreatedEventHandler struct {
	broker port.MessageBroker
	uow    port.UnitOfWork
	log    *zap.Logger
}

func NewNewTaskCreatedEventHandler(broker port.MessageBroker, uow port.UnitOfWork, log *zap.Logger) *NewTaskCreatedEventHandler {
	return &NewTaskCreatedEventHandler{broker: broker, uow: uow, log: log}
}

func (h *NewTaskCreatedEventHandler) Handle(ctx context.Context, event domain.Event) error {
	created, ok := event.(domain.NewTaskCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	task := created.Task

	if err := task.SetStatus(domain.TaskStatusQueued); err != nil {
		return err
	}

	if err := h.uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		return repo.Add(ctx, task)
	}); err != nil {
		return fmt.Errorf("persist task %s: %w", task.Oid, err)
	}

	if err := h.broker.Send(ctx, RoutingKeyTaskCreated, taskCreatedMessage{
		Oid:         task.Oid,
		Description: task.Description,
		Status:      string(task.Status),
	}); err != nil {
		return fmt.Errorf("announce task %s: %w", task.Oid, err)
	}

	h.log.Info("Task queued and announced", zap.String("task_oid", task.Oid))
	return nil
}

// GetTaskDetailQueryHandler resolves a single task, consulting the cache
// before opening a transaction. The cache is optional.
type GetTaskDetailQueryHandler struct {
	uow   port.UnitOfWork
	cache port.TaskCache
	log   *zap.Logger
}

func NewGetTaskDetailQueryHandler(uow port.UnitOfWork, cache port.TaskCache, log *zap.Logger) *GetTaskDetailQueryHandler {
	return &GetTaskDetailQueryHandler{uow: uow, cache: cache, log: log}
}

func (h *GetTaskDetailQueryHandler) Handle(ctx context.Context, query Query) (any, error) {
	detail, ok := query.(GetTaskDetailQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	if h.cache != nil {
		if task, hit := h.cache.Get(ctx, detail.Oid); hit {
			return task, nil
		}
	}

	var task *domain.Task
	if err := h.uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		var err error
		task, err = repo.Get(ctx, detail.Oid)
		return err
	}); err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, task); err != nil {
			h.log.Warn("Failed to cache task", zap.String("task_oid", task.Oid), zap.Error(err))
		}
	}
	return task, nil
}

type GetTasksQueryHandler struct {
	uow port.UnitOfWork
}

func NewGetTasksQueryHandler(uow port.UnitOfWork) *GetTasksQueryHandler {
	return &GetTasksQueryHandler{uow: uow}
}

func (h *GetTasksQueryHandler) Handle(ctx context.Context, query Query) (any, error) {
	list, ok := query.(GetTasksQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	var tasks []*domain.Task
	if err := h.uow.WithinTx(ctx, func(repo port.TaskRepository) error {
		var err error
		tasks, err = repo.FetchAll(ctx, list.Filters)
		return err
	}); err != nil {
		return nil, err
	}
	return tasks, nil
}

// BuildMediator wires the closed set of handlers into a mediator. The cache
// may be nil.
func BuildMediator(broker port.MessageBroker, uow port.UnitOfWork, cache port.TaskCache, log *zap.Logger) *Mediator {
	m := NewMediator(log)
	m.RegisterCommand(CommandKindCreateTask, CreateTaskCommandHandler{})
	m.RegisterQuery(QueryKindTaskDetail, NewGetTaskDetailQueryHandler(uow, cache, log))
	m.RegisterQuery(QueryKindTaskList, NewGetTasksQueryHandler(uow))
	m.RegisterEvent(domain.EventKindTaskCreated, NewNewTaskCreatedEventHandler(broker, uow, log))
	return m
}
