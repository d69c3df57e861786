package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskspace/internal/config"
	"taskspace/internal/domain"
	"taskspace/internal/executor"
	"taskspace/internal/worker"
)

type noopTask struct{ name string }

func (n noopTask) Name() string { return n.name }

func (n noopTask) Execute(ctx context.Context, tc domain.TaskContext) (any, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (http.Handler, *worker.Service) {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 1
	cfg.CheckInterval = config.Duration(10 * time.Millisecond)
	cfg.TakeTimeout = config.Duration(20 * time.Millisecond)

	registry := executor.NewRegistry()
	registry.Register(noopTask{name: "noop"})

	svc := worker.NewService(cfg, registry, nil)
	require.NoError(t, svc.Initialize(context.Background()))
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)

	return NewServer(svc, nil), svc
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var health map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	for component, ok := range health {
		assert.True(t, ok, component)
	}
}

func TestHealthAfterStop(t *testing.T) {
	h, svc := newTestServer(t)
	svc.Stop()

	rec := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitTask(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/tasks",
		`{"type":"noop","payload":{"k":"v"},"timeout":"5s"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["id"], "tsk_")
}

func TestSubmitTaskValidation(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/tasks", `{"payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/tasks", `{"type":"noop","timeout":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/schedules",
		`{"name":"hourly","task":"noop","schedule":"0 * * * *"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	assert.Contains(t, id, "sch_")

	rec = doJSON(t, h, http.MethodGet, "/api/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.ScheduledTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = doJSON(t, h, http.MethodGet, "/api/schedules/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/schedules/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/schedules/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateScheduleRejectsBadInput(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/schedules", `{"task":"noop"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing schedule")

	rec = doJSON(t, h, http.MethodPost, "/api/schedules",
		`{"task":"noop","schedule":"not a cron"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "invalid cron expression")

	rec = doJSON(t, h, http.MethodPost, "/api/schedules",
		`{"task":"noop","schedule":"at 2001-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "one-time in the past")
}

func TestDeleteUnknownSchedule(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodDelete, "/api/schedules/sch_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/schedules",
		`{"task":"noop","schedule":"every 1h"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Schedules int              `json:"schedules"`
		Results   map[string]int64 `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Schedules)
	assert.Contains(t, status.Results, "succeeded")
}

func TestHistoryDisabled(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
