// Package http exposes the task API over a chi router.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/domain"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/service"
)

type Handler struct {
	mediator *service.Mediator
	log      *zap.Logger
}

func NewHandler(mediator *service.Mediator, log *zap.Logger) *Handler {
	return &Handler{mediator: mediator, log: log}
}

type createTaskRequest struct {
	Description string `json:"description"`
}

type taskResponse struct {
	Oid         string     `json:"oid"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	ExecTime    *string    `json:"exec_time,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toTaskResponse(task *domain.Task) taskResponse {
	resp := taskResponse{
		Oid:         task.Oid,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
		StartTime:   task.StartTime,
	}
	if task.ExecTime != nil {
		s := task.ExecTime.String()
		resp.ExecTime = &s
	}
	return resp
}

// CreateTask handles POST /tasks/.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Description == "" {
		h.writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	result, err := h.mediator.HandleCommand(r.Context(), service.CreateTaskCommand{Description: req.Description})
	if err != nil {
		h.log.Error("Create task failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, ok := result.(*domain.Task)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "unexpected command result")
		return
	}
	h.writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

// GetTask handles GET /tasks/{oid}/.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	oid := chi.URLParam(r, "oid")

	result, err := h.mediator.HandleQuery(r.Context(), service.GetTaskDetailQuery{Oid: oid})
	if err != nil {
		var notFound *domain.TaskNotFoundError
		if errors.As(err, &notFound) {
			h.writeError(w, http.StatusNotFound, notFound.Error())
			return
		}
		h.log.Error("Fetch task failed", zap.String("task_oid", oid), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	task := result.(*domain.Task)
	h.writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// ListTasks handles GET /tasks/ with optional limit and status parameters.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filters := domain.DefaultGetTasksFilters()
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filters.Limit = limit
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filters.Status = domain.TaskStatus(v)
	}

	result, err := h.mediator.HandleQuery(r.Context(), service.GetTasksQuery{Filters: filters})
	if err != nil {
		h.log.Error("List tasks failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tasks := result.([]*domain.Task)
	responses := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, toTaskResponse(task))
	}
	h.writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
