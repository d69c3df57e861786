package domain

import "time"

// ScheduleType distinguishes how a registered task's fire times are computed.
type ScheduleType string

const (
	ScheduleCron     ScheduleType = "cron"
	ScheduleInterval ScheduleType = "interval"
	ScheduleOnce     ScheduleType = "once"
)

const (
	DefaultPriority   = 5
	DefaultMaxRetries = 3
)

// ScheduledTask is a registration entry, not a unit of work. Exactly one of
// CronExpr/Every is meaningful, selected by Type. One-time registrations
// never appear in the scheduler's resident map; they live only in its
// pending heap until they fire.
type ScheduledTask struct {
	ID         string
	Name       string
	Type       ScheduleType
	Parameters map[string]any
	Priority   int
	MaxRetries int
	Timeout    time.Duration // zero means no timeout
	NextRun    time.Time     // zero until first computed
	CronExpr   string        // cron only
	Every      time.Duration // interval only
}

// Task is the queue envelope handed to the executor pool. A fresh Task is
// built each time a ScheduledTask fires or an ad-hoc submission arrives.
type Task struct {
	ID         string
	Type       string
	Payload    map[string]any
	Priority   int
	RetryCount int
	MaxRetries int
	Timeout    time.Duration
	EnqueuedAt time.Time
}

// TaskContext is the per-invocation envelope task logic actually receives.
type TaskContext struct {
	TaskID      string
	TaskName    string
	Parameters  map[string]any
	Attempt     int // 1-based
	MaxAttempts int
	Timeout     time.Duration
	Priority    int
}

// Status is the outcome class of one execution attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusRetry   Status = "retry"
)

// IsTerminal reports whether the engine will not attempt the task again.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// TaskResult is published to the result space after every attempt.
// Result is set only on success, Error only on failure/retry.
type TaskResult struct {
	TaskID     string
	TaskType   string
	Status     Status
	Result     any
	Error      string
	Attempt    int
	Duration   time.Duration
	FinishedAt time.Time
}

// Context builds the execution envelope for the task's current attempt.
func (t *Task) Context() TaskContext {
	return TaskContext{
		TaskID:      t.ID,
		TaskName:    t.Type,
		Parameters:  t.Payload,
		Attempt:     t.RetryCount + 1,
		MaxAttempts: t.MaxRetries,
		Timeout:     t.Timeout,
		Priority:    t.Priority,
	}
}
