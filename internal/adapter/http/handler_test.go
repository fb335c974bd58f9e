package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memoryqueue "github.com/crabzie/RabbitMQ-Task-Pipeline/internal/adapter/queue/memory"
	memorystorage "github.com/crabzie/RabbitMQ-Task-Pipeline/internal/adapter/storage/memory"
	"github.com/crabzie/RabbitMQ-Task-Pipeline/internal/core/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	uow := memorystorage.NewUnitOfWork()
	broker := memoryqueue.NewBroker(zap.NewNop())
	mediator := service.BuildMediator(broker, uow, nil, zap.NewNop())

	srv := httptest.NewServer(NewRouter(NewHandler(mediator, zap.NewNop())))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateTask_Created(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/tasks/", "application/json",
		strings.NewReader(`{"description": "demo"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body taskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Oid)
	assert.Equal(t, "demo", body.Description)
	assert.Equal(t, "queued", body.Status)
}

func TestCreateTask_MissingDescription(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/tasks/", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTask_RoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/tasks/", "application/json",
		strings.NewReader(`{"description": "lookup me"}`))
	require.NoError(t, err)
	var created taskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/tasks/" + created.Oid + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched taskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	assert.Equal(t, created.Oid, fetched.Oid)
	assert.Equal(t, "lookup me", fetched.Description)
}

func TestGetTask_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tasks/no-such-task/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "no-such-task")
}

func TestListTasks_InvalidLimit(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tasks/?limit=-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTasks_DefaultsToCompleted(t *testing.T) {
	srv := newTestServer(t)

	// Freshly created tasks are queued, so the default completed filter
	// returns an empty list.
	resp, err := http.Post(srv.URL+"/tasks/", "application/json",
		strings.NewReader(`{"description": "queued one"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/tasks/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body []taskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body)
}
