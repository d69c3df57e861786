// Package monitor consumes the result space: it logs each outcome, keeps
// aggregate counters for the status surface, and appends results to the
// history store.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taskspace/internal/domain"
	"taskspace/internal/history"
	"taskspace/internal/queue"
)

const takeTimeout = 500 * time.Millisecond

// Stats is a snapshot of observed outcomes since start.
type Stats struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
}

// Monitor is the single consumer of the result space.
type Monitor struct {
	queue *queue.Manager
	store *history.Store

	mu      sync.Mutex
	stats   Stats
	running bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Monitor. store may be nil; results are then only logged and
// counted.
func New(qm *queue.Manager, store *history.Store) *Monitor {
	return &Monitor{queue: qm, store: store, stop: make(chan struct{})}
}

// Start launches the consume loop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx)
	log.Info().Msg("worker monitor started")
}

// Stop signals the loop and waits for it to drain its current take.
func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	m.wg.Wait()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	log.Info().Msg("worker monitor stopped")
}

// Healthy reports whether the consume loop is running.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats returns a copy of the aggregate counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		default:
		}

		res, ok := m.queue.TakeResult(ctx, takeTimeout, func(domain.TaskResult) bool { return true })
		if !ok {
			continue
		}
		m.observe(ctx, res)
	}
}

func (m *Monitor) observe(ctx context.Context, res domain.TaskResult) {
	m.mu.Lock()
	switch res.Status {
	case domain.StatusSuccess:
		m.stats.Succeeded++
	case domain.StatusFailure:
		m.stats.Failed++
	case domain.StatusRetry:
		m.stats.Retried++
	}
	m.mu.Unlock()

	ev := log.Info()
	if res.Status == domain.StatusFailure {
		ev = log.Error()
	}
	ev.Str("task_id", res.TaskID).
		Str("type", res.TaskType).
		Str("status", string(res.Status)).
		Int("attempt", res.Attempt).
		Dur("duration", res.Duration).
		Msg("task result")

	if m.store != nil {
		if err := m.store.Save(ctx, res); err != nil {
			log.Error().Err(err).Str("task_id", res.TaskID).Msg("failed to record result")
		}
	}
}
