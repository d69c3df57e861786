package domain

import (
	"fmt"
	"time"
)

// InvalidScheduleError is returned when a cron expression does not parse or
// an interval is not positive. Raised at registration time, never at runtime.
type InvalidScheduleError struct {
	Schedule string
	Reason   string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %s", e.Schedule, e.Reason)
}

// PastTimestampError is returned when a one-time task is scheduled at or
// before the current time.
type PastTimestampError struct {
	RunAt time.Time
}

func (e *PastTimestampError) Error() string {
	return fmt.Sprintf("scheduled time %s must be in the future", e.RunAt.Format(time.RFC3339))
}

// TaskTimeoutError is returned when an execution exceeds its configured
// timeout. A timeout is terminal: the engine never retries it.
type TaskTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %s", e.TaskID, e.Timeout)
}

// NotRunnableError is returned by the executor precheck when no handler is
// registered for a task type.
type NotRunnableError struct {
	TaskType string
}

func (e *NotRunnableError) Error() string {
	return fmt.Sprintf("no handler registered for task type %q", e.TaskType)
}

// InitializationError wraps a component failure during service startup.
// Already-initialized components are rolled back before it propagates.
type InitializationError struct {
	Component string
	Err       error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Component, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
