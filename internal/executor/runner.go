package executor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"taskspace/internal/domain"
	"taskspace/internal/metrics"
)

// runAttempt performs a single attempt: before hook, execution under the
// configured timeout, after hook, metrics. It never retries; retry is the
// pool's responsibility. On timeout the execution goroutine is abandoned
// and a TaskTimeoutError is returned.
func runAttempt(ctx context.Context, rn Runnable, tc domain.TaskContext) (any, error) {
	start := time.Now()

	if hook, ok := rn.(BeforeHook); ok {
		if err := hook.BeforeExecute(ctx, tc); err != nil {
			return nil, err
		}
	}

	var (
		result any
		err    error
	)
	if tc.Timeout > 0 {
		result, err = executeWithTimeout(ctx, rn, tc)
	} else {
		result, err = rn.Execute(ctx, tc)
	}

	metrics.TaskDurationSeconds.WithLabelValues(tc.TaskName).Observe(time.Since(start).Seconds())

	var timeoutErr *domain.TaskTimeoutError
	switch {
	case err == nil:
		if hook, ok := rn.(AfterHook); ok {
			hook.AfterExecute(ctx, tc, result)
		}
		metrics.TasksSucceeded.WithLabelValues(tc.TaskName).Inc()
		return result, nil
	case errors.As(err, &timeoutErr):
		log.Error().Str("task_id", tc.TaskID).Dur("timeout", tc.Timeout).Msg("task timed out")
		metrics.TasksTimedOut.WithLabelValues(tc.TaskName).Inc()
		return nil, err
	default:
		// Terminal-vs-retry is the pool's call; only it counts failures.
		log.Error().Err(err).Str("task_id", tc.TaskID).Int("attempt", tc.Attempt).Msg("task failed")
		return nil, err
	}
}

type execOutcome struct {
	result any
	err    error
}

// executeWithTimeout runs Execute in its own goroutine so an overrunning
// task can be abandoned at the deadline. The child context is cancelled so
// cooperative tasks stop promptly; uncooperative ones leak until they
// return, which matches the no-preemption contract.
func executeWithTimeout(ctx context.Context, rn Runnable, tc domain.TaskContext) (any, error) {
	execCtx, cancel := context.WithTimeout(ctx, tc.Timeout)
	defer cancel()

	out := make(chan execOutcome, 1)
	go func() {
		result, err := rn.Execute(execCtx, tc)
		out <- execOutcome{result: result, err: err}
	}()

	select {
	case o := <-out:
		return o.result, o.err
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, &domain.TaskTimeoutError{TaskID: tc.TaskID, Timeout: tc.Timeout}
		}
		// Parent cancellation (shutdown), not a timeout.
		return nil, execCtx.Err()
	}
}
