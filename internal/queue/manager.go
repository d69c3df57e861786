// Package queue mediates all task and result traffic between the scheduler,
// the executor pool and the monitor.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"taskspace/internal/domain"
	"taskspace/internal/metrics"
	"taskspace/internal/space"
)

// Manager owns the task and result spaces. Components never hold references
// to each other's state; they put into and take from the manager's spaces.
type Manager struct {
	tasks   *space.Space[domain.Task]
	results *space.Space[domain.TaskResult]
	started bool
}

// NewManager wraps the given spaces. The spaces are built first by the
// worker service so their lifetime outlives the manager's start/stop cycle.
func NewManager(tasks *space.Space[domain.Task], results *space.Space[domain.TaskResult]) *Manager {
	return &Manager{tasks: tasks, results: results}
}

// EnqueueTask fills defaults, stamps the enqueue time and puts the task into
// the task space. An empty ID gets a generated one. Zero Priority and
// MaxRetries mean "unset" and are replaced with the defaults: priority 0 and
// a zero-retry budget are not expressible through this API.
func (m *Manager) EnqueueTask(t domain.Task) string {
	if t.ID == "" {
		t.ID = "tsk_" + uuid.NewString()
	}
	if t.Priority == 0 {
		t.Priority = domain.DefaultPriority
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = domain.DefaultMaxRetries
	}
	t.EnqueuedAt = time.Now().UTC()
	m.tasks.Put(t, t.Priority)
	metrics.QueueDepth.WithLabelValues(m.tasks.Name()).Set(float64(m.tasks.Len()))
	log.Debug().Str("task_id", t.ID).Str("type", t.Type).Int("priority", t.Priority).Msg("task enqueued")
	return t.ID
}

// TakeTask blocks up to timeout for the next task matching pred.
func (m *Manager) TakeTask(ctx context.Context, timeout time.Duration, pred func(domain.Task) bool) (domain.Task, bool) {
	t, ok := m.tasks.Take(ctx, timeout, pred)
	if ok {
		metrics.QueueDepth.WithLabelValues(m.tasks.Name()).Set(float64(m.tasks.Len()))
	}
	return t, ok
}

// PublishResult puts an execution outcome into the result space.
func (m *Manager) PublishResult(r domain.TaskResult) {
	m.results.Put(r, 0)
	metrics.QueueDepth.WithLabelValues(m.results.Name()).Set(float64(m.results.Len()))
}

// TakeResult blocks up to timeout for the next result matching pred.
func (m *Manager) TakeResult(ctx context.Context, timeout time.Duration, pred func(domain.TaskResult) bool) (domain.TaskResult, bool) {
	r, ok := m.results.Take(ctx, timeout, pred)
	if ok {
		metrics.QueueDepth.WithLabelValues(m.results.Name()).Set(float64(m.results.Len()))
	}
	return r, ok
}

// Depths reports the buffered task and result counts.
func (m *Manager) Depths() (tasks, results int) {
	return m.tasks.Len(), m.results.Len()
}

// Start marks the manager running.
func (m *Manager) Start() { m.started = true }

// Stop marks the manager stopped. The spaces themselves are closed by the
// worker service, which built them.
func (m *Manager) Stop() { m.started = false }

// Healthy reports whether the manager has been started and not stopped.
func (m *Manager) Healthy() bool { return m.started }
