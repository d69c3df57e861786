// Package scheduler decides when each registered task is next due and, on
// expiry, enqueues a fresh Task into the task space. Scheduling state is
// memory-resident: a restart loses registrations unless the bootstrap
// config re-registers them.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"taskspace/internal/domain"
	"taskspace/internal/metrics"
)

// TaskQueue is the scheduler's only dependency: somewhere to put due tasks.
type TaskQueue interface {
	EnqueueTask(t domain.Task) string
}

// DefaultCheckInterval is the pause between scheduler ticks.
const DefaultCheckInterval = time.Second

// cronParser accepts standard five-field expressions plus an optional
// leading seconds field and @-descriptors.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateCron checks a cron expression without registering anything.
func ValidateCron(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}

// Scheduler owns the resident map of cron/interval registrations and the
// one-time heap. All access goes through its methods.
type Scheduler struct {
	queue    TaskQueue
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	tasks   map[string]*domain.ScheduledTask
	crons   map[string]cron.Schedule
	pending onceHeap
	seq     uint64
	started bool
	running bool

	stop chan struct{}
	done chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCheckInterval overrides the tick interval.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New builds a Scheduler publishing into q.
func New(q TaskQueue, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:    q,
		interval: DefaultCheckInterval,
		now:      time.Now,
		tasks:    make(map[string]*domain.ScheduledTask),
		crons:    make(map[string]cron.Schedule),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleCron registers a recurring task. The expression is validated here;
// an unparsable one fails with InvalidScheduleError and creates no state.
// NextRun is the first occurrence strictly after now.
func (s *Scheduler) ScheduleCron(taskName, expr string, params map[string]any, priority int) (string, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return "", &domain.InvalidScheduleError{Schedule: expr, Reason: err.Error()}
	}

	st := &domain.ScheduledTask{
		ID:         newTaskID(),
		Name:       taskName,
		Type:       domain.ScheduleCron,
		Parameters: params,
		Priority:   priority,
		MaxRetries: domain.DefaultMaxRetries,
		CronExpr:   expr,
		NextRun:    sched.Next(s.now()),
	}

	s.mu.Lock()
	s.tasks[st.ID] = st
	s.crons[st.ID] = sched
	s.mu.Unlock()

	log.Info().Str("task", taskName).Str("cron", expr).Time("next_run", st.NextRun).Msg("scheduled cron task")
	return st.ID, nil
}

// ScheduleInterval registers a fixed-interval task. The interval must be
// positive. The first run is one interval from now.
func (s *Scheduler) ScheduleInterval(taskName string, every time.Duration, params map[string]any, priority int) (string, error) {
	if every <= 0 {
		return "", &domain.InvalidScheduleError{Schedule: every.String(), Reason: "interval must be greater than 0"}
	}

	st := &domain.ScheduledTask{
		ID:         newTaskID(),
		Name:       taskName,
		Type:       domain.ScheduleInterval,
		Parameters: params,
		Priority:   priority,
		MaxRetries: domain.DefaultMaxRetries,
		Every:      every,
		NextRun:    s.now().Add(every),
	}

	s.mu.Lock()
	s.tasks[st.ID] = st
	s.mu.Unlock()

	log.Info().Str("task", taskName).Dur("every", every).Msg("scheduled interval task")
	return st.ID, nil
}

// ScheduleOnce queues a single future execution. It never enters the
// resident map: the entry lives on the heap until it fires, then is
// discarded. A non-future runAt fails with PastTimestampError.
func (s *Scheduler) ScheduleOnce(taskName string, runAt time.Time, params map[string]any, priority int) (string, error) {
	if !runAt.After(s.now()) {
		return "", &domain.PastTimestampError{RunAt: runAt}
	}

	id := newTaskID()
	s.mu.Lock()
	s.seq++
	heap.Push(&s.pending, &onceEntry{
		runAt:    runAt,
		priority: priority,
		taskID:   id,
		task:     taskName,
		params:   params,
		seq:      s.seq,
	})
	s.mu.Unlock()

	log.Info().Str("task", taskName).Time("run_at", runAt).Msg("scheduled one-time task")
	return id, nil
}

// RemoveTask unregisters a cron or interval task. One-time entries cannot be
// removed once queued; for those (and unknown ids) it returns false.
func (s *Scheduler) RemoveTask(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return false
	}
	delete(s.tasks, taskID)
	delete(s.crons, taskID)
	log.Info().Str("task_id", taskID).Msg("removed scheduled task")
	return true
}

// SetPolicy adjusts the retry budget and per-run timeout of a resident
// registration. One-time entries are not adjustable once queued; they run
// with defaults.
func (s *Scheduler) SetPolicy(taskID string, maxRetries int, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[taskID]
	if !ok {
		return false
	}
	if maxRetries > 0 {
		st.MaxRetries = maxRetries
	}
	if timeout > 0 {
		st.Timeout = timeout
	}
	return true
}

// TaskInfo returns a snapshot of a resident registration.
func (s *Scheduler) TaskInfo(taskID string) (domain.ScheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[taskID]
	if !ok {
		return domain.ScheduledTask{}, false
	}
	return *st, true
}

// Tasks returns snapshots of all resident registrations.
func (s *Scheduler) Tasks() []domain.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, st := range s.tasks {
		out = append(out, *st)
	}
	return out
}

// PendingOnce returns the number of queued one-time entries.
func (s *Scheduler) PendingOnce() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Start runs the polling loop until Stop is called or ctx is cancelled.
// Stop is cooperative: it is observed at the next loop boundary, so an
// in-flight tick finishes and nothing is enqueued afterwards.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	s.running = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		log.Info().Msg("task scheduler stopped")
	}()

	log.Info().Dur("check_interval", s.interval).Msg("task scheduler started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// Stop signals the loop to exit and waits for it. Stopping a scheduler
// whose loop never ran returns immediately.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Healthy reports whether the polling loop is running.
func (s *Scheduler) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// tick fires every due resident entry, then drains due one-time entries in
// (runAt, priority) order. A failure on one entry never blocks the rest.
func (s *Scheduler) tick() {
	now := s.now()

	// Snapshot due entries by value: SetPolicy and RemoveTask may run
	// concurrently, so nothing outside the lock touches the live entry.
	s.mu.Lock()
	var due []domain.ScheduledTask
	for _, st := range s.tasks {
		if !st.NextRun.IsZero() && !st.NextRun.After(now) {
			due = append(due, *st)
		}
	}
	s.mu.Unlock()

	for _, st := range due {
		s.fireResident(st, now)
	}

	for {
		s.mu.Lock()
		if s.pending.Len() == 0 || s.pending[0].runAt.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.pending).(*onceEntry)
		s.mu.Unlock()
		s.fireOnce(e)
	}
}

// fireResident enqueues one run from a snapshot and advances the live
// entry's NextRun anchored at now, so a late tick produces exactly one run
// rather than a burst of catch-ups. An entry removed mid-fire keeps no state.
func (s *Scheduler) fireResident(st domain.ScheduledTask, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task_id", st.ID).Any("panic", r).Msg("scheduled task enqueue panicked")
		}
	}()

	s.queue.EnqueueTask(domain.Task{
		Type:       st.Name,
		Payload:    st.Parameters,
		Priority:   st.Priority,
		MaxRetries: st.MaxRetries,
		Timeout:    st.Timeout,
	})
	metrics.ScheduledFires.WithLabelValues(string(st.Type)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.tasks[st.ID]
	if !ok {
		return
	}
	switch live.Type {
	case domain.ScheduleCron:
		if sched, ok := s.crons[st.ID]; ok {
			live.NextRun = sched.Next(now)
		}
	case domain.ScheduleInterval:
		live.NextRun = now.Add(live.Every)
	}
}

// fireOnce enqueues a popped heap entry. The entry is consumed exactly once
// and never reinserted, even if the enqueue fails.
func (s *Scheduler) fireOnce(e *onceEntry) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task_id", e.taskID).Any("panic", r).Msg("one-time task enqueue panicked")
		}
	}()

	s.queue.EnqueueTask(domain.Task{
		Type:       e.task,
		Payload:    e.params,
		Priority:   e.priority,
		MaxRetries: domain.DefaultMaxRetries,
	})
	metrics.ScheduledFires.WithLabelValues(string(domain.ScheduleOnce)).Inc()
}

func newTaskID() string { return "sch_" + uuid.NewString() }
