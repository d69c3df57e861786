// Package executor runs tasks pulled from the task space and publishes a
// TaskResult to the result space for every attempt.
//
// Retry is requeue-based and forms a single state machine:
//
//	Pending -> Running -> {Succeeded | Retrying(count++) -> Running | Failed}
//
// MaxRetries is the total attempt budget. A task whose handler always fails
// produces exactly MaxRetries results, the last one terminal. Timeouts are
// terminal immediately: a timeout is a hard signal, not a transient failure.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taskspace/internal/domain"
	"taskspace/internal/metrics"
	"taskspace/internal/queue"
)

// DefaultTakeTimeout bounds each wait on the task space so worker loops can
// observe shutdown.
const DefaultTakeTimeout = 500 * time.Millisecond

// Pool is a fixed set of worker goroutines sharing one registry and queue.
type Pool struct {
	queue       *queue.Manager
	registry    *Registry
	size        int
	takeTimeout time.Duration
	baseBackoff time.Duration

	mu      sync.Mutex
	running bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithTakeTimeout overrides the per-take wait on the task space.
func WithTakeTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.takeTimeout = d }
}

// WithBaseBackoff overrides the base delay for retry requeues. Zero disables
// the delay.
func WithBaseBackoff(d time.Duration) PoolOption {
	return func(p *Pool) { p.baseBackoff = d }
}

// NewPool builds a pool of size workers. Size must be at least 1.
func NewPool(qm *queue.Manager, registry *Registry, size int, opts ...PoolOption) (*Pool, error) {
	if size < 1 {
		return nil, errors.New("executor pool size must be at least 1")
	}
	p := &Pool{
		queue:       qm,
		registry:    registry,
		size:        size,
		takeTimeout: DefaultTakeTimeout,
		baseBackoff: time.Second,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}
	log.Info().Int("workers", p.size).Msg("executor pool started")
}

// Stop signals the workers and waits for in-flight attempts to finish.
func (p *Pool) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	log.Info().Msg("executor pool stopped")
}

// Healthy reports whether the pool has been started and not stopped.
func (p *Pool) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// workerLoop takes a task, executes it, publishes the result. Any failure
// becomes a failure result; the loop itself never crashes.
func (p *Pool) workerLoop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		task, ok := p.queue.TakeTask(ctx, p.takeTimeout, func(domain.Task) bool { return true })
		if !ok {
			continue
		}

		res := p.Execute(ctx, task)
		p.queue.PublishResult(res)

		if res.Status == domain.StatusRetry {
			// Requeue off the worker goroutine so the backoff delay does
			// not stall the pull loop.
			p.wg.Add(1)
			go func(t domain.Task) {
				defer p.wg.Done()
				p.requeue(ctx, t)
			}(task)
		}
	}
}

// Execute runs one attempt of the task and classifies the outcome. The
// returned result always carries a terminal or retry status; callers decide
// nothing beyond requeueing retries.
func (p *Pool) Execute(ctx context.Context, task domain.Task) domain.TaskResult {
	start := time.Now()
	tc := task.Context()

	res := domain.TaskResult{
		TaskID:   task.ID,
		TaskType: task.Type,
		Attempt:  tc.Attempt,
	}

	rn, err := p.registry.Get(task.Type)
	if err != nil {
		res.Status = domain.StatusFailure
		res.Error = "Task cannot be executed: " + err.Error()
		res.FinishedAt = time.Now().UTC()
		log.Error().Str("task_id", task.ID).Str("type", task.Type).Msg("task failed precheck")
		metrics.TasksFailed.WithLabelValues(task.Type).Inc()
		return res
	}

	metrics.TasksInFlight.Inc()
	result, execErr := runAttempt(ctx, rn, tc)
	metrics.TasksInFlight.Dec()

	res.Duration = time.Since(start)
	res.FinishedAt = time.Now().UTC()

	if execErr == nil {
		res.Status = domain.StatusSuccess
		res.Result = result
		return res
	}

	res.Error = execErr.Error()

	var timeoutErr *domain.TaskTimeoutError
	if errors.As(execErr, &timeoutErr) {
		res.Status = domain.StatusFailure
		metrics.TasksFailed.WithLabelValues(task.Type).Inc()
		return res
	}

	task.RetryCount++
	if task.RetryCount < task.MaxRetries {
		res.Status = domain.StatusRetry
		metrics.TaskRetries.WithLabelValues(task.Type).Inc()
		return res
	}
	res.Status = domain.StatusFailure
	metrics.TasksFailed.WithLabelValues(task.Type).Inc()
	return res
}

// requeue puts a retrying task back into the task space after an exponential
// backoff. The delay wait aborts on shutdown, dropping the retry; losing
// in-flight retries on stop is covered by the at-most-once crash contract.
func (p *Pool) requeue(ctx context.Context, task domain.Task) {
	task.RetryCount++
	delay := backoffExp(task.RetryCount, p.baseBackoff)

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-p.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	log.Warn().Str("task_id", task.ID).Int("retry", task.RetryCount).Dur("delay", delay).Msg("requeueing task")
	p.queue.EnqueueTask(task)
}

// backoffExp returns base * 2^(n-1), capped at 60x base. 1,2,4,8...
func backoffExp(n int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if n <= 0 {
		return base
	}
	mult := 1 << (n - 1)
	if mult > 60 {
		mult = 60
	}
	return time.Duration(mult) * base
}
