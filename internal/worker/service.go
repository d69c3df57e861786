// Package worker orchestrates the engine's component lifecycle. Components
// are built in strict dependency order — spaces, queue manager, executor
// pool, scheduler, monitor — started in that order and stopped in exact
// reverse.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taskspace/internal/config"
	"taskspace/internal/domain"
	"taskspace/internal/executor"
	"taskspace/internal/history"
	"taskspace/internal/monitor"
	"taskspace/internal/queue"
	"taskspace/internal/scheduler"
	"taskspace/internal/space"
)

// Service aggregates start/stop/health over the engine components.
type Service struct {
	cfg      config.Config
	registry *executor.Registry
	store    *history.Store // nil disables history persistence

	mu          sync.Mutex
	initialized bool
	started     bool

	taskSpace   *space.Space[domain.Task]
	resultSpace *space.Space[domain.TaskResult]
	queue       *queue.Manager
	pool        *executor.Pool
	scheduler   *scheduler.Scheduler
	monitor     *monitor.Monitor

	schedDone chan struct{}
	poolOpts  []executor.PoolOption
	schedOpts []scheduler.Option
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPoolOptions passes options through to the executor pool.
func WithPoolOptions(opts ...executor.PoolOption) ServiceOption {
	return func(s *Service) { s.poolOpts = append(s.poolOpts, opts...) }
}

// WithSchedulerOptions passes options through to the scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) ServiceOption {
	return func(s *Service) { s.schedOpts = append(s.schedOpts, opts...) }
}

// NewService builds an unstarted Service. store may be nil.
func NewService(cfg config.Config, registry *executor.Registry, store *history.Store, opts ...ServiceOption) *Service {
	s := &Service{cfg: cfg, registry: registry, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize builds all components in dependency order. It is idempotent: a
// second call logs a warning and returns nil without side effects. If any
// step fails, components built so far are torn down in reverse order and an
// InitializationError propagates — no partially-initialized service is left
// behind.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		log.Warn().Msg("worker service already initialized")
		return nil
	}

	log.Info().Msg("initializing worker service")
	var cleanups []func()
	fail := func(component string, err error) error {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		s.taskSpace, s.resultSpace = nil, nil
		s.queue, s.pool, s.scheduler, s.monitor = nil, nil, nil, nil
		return &domain.InitializationError{Component: component, Err: err}
	}

	// Spaces first: everything else communicates through them.
	s.taskSpace = space.New[domain.Task]("tasks")
	s.resultSpace = space.New[domain.TaskResult]("results")
	cleanups = append(cleanups, func() {
		s.taskSpace.Close()
		s.resultSpace.Close()
	})

	s.queue = queue.NewManager(s.taskSpace, s.resultSpace)

	pool, err := executor.NewPool(s.queue, s.registry, s.cfg.Workers,
		append([]executor.PoolOption{executor.WithTakeTimeout(s.cfg.TakeTimeout.Std())}, s.poolOpts...)...)
	if err != nil {
		return fail("executor", err)
	}
	s.pool = pool

	s.scheduler = scheduler.New(s.queue,
		append([]scheduler.Option{scheduler.WithCheckInterval(s.cfg.CheckInterval.Std())}, s.schedOpts...)...)

	s.monitor = monitor.New(s.queue, s.store)

	s.initialized = true
	log.Info().Msg("worker service initialized")
	return nil
}

// Start launches the components: queue, executor pool, scheduler, monitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return &domain.InitializationError{Component: "service", Err: errNotInitialized}
	}
	if s.started {
		return nil
	}

	s.queue.Start()
	s.pool.Start(ctx)

	s.schedDone = make(chan struct{})
	go func() {
		defer close(s.schedDone)
		s.scheduler.Start(ctx)
	}()
	// The scheduler flips its health flag at loop entry; give it one pass.
	waitUntil(func() bool { return s.scheduler.Healthy() }, 100*time.Millisecond)

	s.monitor.Start(ctx)

	s.started = true
	log.Info().Msg("worker service started")
	return nil
}

// Stop shuts the components down in exact reverse start order: monitor,
// scheduler, executor pool, queue, then the spaces.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	log.Info().Msg("stopping worker service")

	s.monitor.Stop()
	s.scheduler.Stop()
	<-s.schedDone
	s.pool.Stop()
	s.queue.Stop()
	s.taskSpace.Close()
	s.resultSpace.Close()

	s.started = false
	log.Info().Msg("worker service stopped")
}

// HealthCheck reports per-component health. Components not yet initialized
// report false. It never panics.
func (s *Service) HealthCheck(ctx context.Context) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	health := map[string]bool{
		"spaces":        false,
		"queue_manager": false,
		"executor":      false,
		"scheduler":     false,
		"monitor":       false,
	}
	if s.taskSpace != nil && s.resultSpace != nil {
		health["spaces"] = true
	}
	if s.queue != nil {
		health["queue_manager"] = s.queue.Healthy()
	}
	if s.pool != nil {
		health["executor"] = s.pool.Healthy()
	}
	if s.scheduler != nil {
		health["scheduler"] = s.scheduler.Healthy()
	}
	if s.monitor != nil {
		health["monitor"] = s.monitor.Healthy()
	}
	if s.store != nil {
		health["history"] = s.store.Healthy(ctx)
	}
	return health
}

// Submit enqueues an ad-hoc task, bypassing the scheduler.
func (s *Service) Submit(t domain.Task) (string, error) {
	s.mu.Lock()
	qm := s.queue
	s.mu.Unlock()
	if qm == nil {
		return "", &domain.InitializationError{Component: "queue_manager", Err: errNotInitialized}
	}
	return qm.EnqueueTask(t), nil
}

// Scheduler exposes the scheduler for registration APIs. Nil before
// Initialize.
func (s *Service) Scheduler() *scheduler.Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler
}

// Queue exposes the queue manager. Nil before Initialize.
func (s *Service) Queue() *queue.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue
}

// Monitor exposes the monitor. Nil before Initialize.
func (s *Service) Monitor() *monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitor
}

// RegisterJobs loads the bootstrap registration table. Malformed schedule
// strings are logged and skipped — never fatal to bootstrap. Returns the
// number of jobs registered.
func (s *Service) RegisterJobs(jobs []config.Job) int {
	sched := s.Scheduler()
	if sched == nil {
		log.Error().Msg("cannot register jobs before initialization")
		return 0
	}

	registered := 0
	for _, job := range jobs {
		spec, err := config.ParseSchedule(job.Schedule)
		if err != nil {
			log.Warn().Err(err).Str("job", job.Name).Msg("skipping job with malformed schedule")
			continue
		}

		priority := job.Priority
		if priority == 0 {
			priority = domain.DefaultPriority
		}

		var id string
		switch spec.Kind {
		case config.KindCron:
			id, err = sched.ScheduleCron(job.Task, spec.Cron, job.Payload, priority)
		case config.KindInterval:
			id, err = sched.ScheduleInterval(job.Task, spec.Every, job.Payload, priority)
		case config.KindOnce:
			id, err = sched.ScheduleOnce(job.Task, spec.RunAt, job.Payload, priority)
		}
		if err != nil {
			log.Warn().Err(err).Str("job", job.Name).Msg("skipping unregistrable job")
			continue
		}

		if job.MaxRetries > 0 || job.Timeout > 0 {
			sched.SetPolicy(id, job.MaxRetries, job.Timeout.Std())
		}
		registered++
		log.Info().Str("job", job.Name).Str("task", job.Task).Str("schedule", job.Schedule).Str("id", id).Msg("registered job")
	}
	return registered
}

var errNotInitialized = &notInitializedError{}

type notInitializedError struct{}

func (*notInitializedError) Error() string { return "worker service not initialized" }

// waitUntil polls cond every millisecond up to the deadline.
func waitUntil(cond func() bool, max time.Duration) {
	deadline := time.Now().Add(max)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}
