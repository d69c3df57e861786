package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskspace/internal/config"
	"taskspace/internal/domain"
	"taskspace/internal/executor"
)

type countingTask struct {
	name string
	err  error
	mu   sync.Mutex
	runs int
}

func (c *countingTask) Name() string { return c.name }

func (c *countingTask) Execute(ctx context.Context, tc domain.TaskContext) (any, error) {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	return "ok", c.err
}

func (c *countingTask) runCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	cfg.CheckInterval = config.Duration(10 * time.Millisecond)
	cfg.TakeTimeout = config.Duration(20 * time.Millisecond)
	return cfg
}

func TestInitializeIsIdempotent(t *testing.T) {
	svc := NewService(testConfig(), executor.NewRegistry(), nil)
	ctx := context.Background()

	require.NoError(t, svc.Initialize(ctx))
	first := svc.Scheduler()
	require.NotNil(t, first)

	require.NoError(t, svc.Initialize(ctx), "second call is a warning, not an error")
	assert.Same(t, first, svc.Scheduler(), "no components rebuilt")
}

func TestInitializeRollsBackOnExecutorFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 0 // pool construction fails
	svc := NewService(cfg, executor.NewRegistry(), nil)
	ctx := context.Background()

	err := svc.Initialize(ctx)
	require.Error(t, err)

	var initErr *domain.InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "executor", initErr.Component)

	health := svc.HealthCheck(ctx)
	for component, ok := range health {
		assert.False(t, ok, "component %s must be unhealthy after rollback", component)
	}
	assert.Nil(t, svc.Scheduler())
	assert.Nil(t, svc.Queue())
}

func TestStartRequiresInitialize(t *testing.T) {
	svc := NewService(testConfig(), executor.NewRegistry(), nil)
	err := svc.Start(context.Background())
	var initErr *domain.InitializationError
	assert.True(t, errors.As(err, &initErr))
}

func TestHealthCheckNeverPanics(t *testing.T) {
	svc := NewService(testConfig(), executor.NewRegistry(), nil)
	health := svc.HealthCheck(context.Background())
	for _, component := range []string{"spaces", "queue_manager", "executor", "scheduler", "monitor"} {
		v, present := health[component]
		assert.True(t, present, "component %s missing from health map", component)
		assert.False(t, v)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	reg := executor.NewRegistry()
	task := &countingTask{name: "tick"}
	reg.Register(task)

	svc := NewService(testConfig(), reg, nil)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx))
	require.NoError(t, svc.Start(ctx))

	health := svc.HealthCheck(ctx)
	for component, ok := range health {
		assert.True(t, ok, "component %s unhealthy after start", component)
	}

	// End to end: interval registration fires, executor runs, monitor counts.
	_, err := svc.Scheduler().ScheduleInterval("tick", 20*time.Millisecond, nil, 5)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.Monitor().Stats().Succeeded >= 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, task.runCount(), 2)

	svc.Stop()
	health = svc.HealthCheck(ctx)
	assert.False(t, health["scheduler"])
	assert.False(t, health["executor"])
	assert.False(t, health["monitor"])
	assert.True(t, health["spaces"], "spaces exist even when stopped")
}

func TestSubmitAdHocTask(t *testing.T) {
	reg := executor.NewRegistry()
	task := &countingTask{name: "adhoc"}
	reg.Register(task)

	svc := NewService(testConfig(), reg, nil)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx))
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	id, err := svc.Submit(domain.Task{Type: "adhoc", Payload: map[string]any{"n": 1}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return task.runCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitBeforeInitialize(t *testing.T) {
	svc := NewService(testConfig(), executor.NewRegistry(), nil)
	_, err := svc.Submit(domain.Task{Type: "x"})
	assert.Error(t, err)
}

func TestRegisterJobsSkipsMalformed(t *testing.T) {
	svc := NewService(testConfig(), executor.NewRegistry(), nil)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx))

	jobs := []config.Job{
		{Name: "good-cron", Task: "a", Schedule: "*/5 * * * *"},
		{Name: "good-interval", Task: "b", Schedule: "every 30s", MaxRetries: 5, Timeout: config.Duration(time.Minute)},
		{Name: "bad-cron", Task: "c", Schedule: "not a cron"},
		{Name: "bad-interval", Task: "d", Schedule: "every zero"},
		{Name: "empty", Task: "e", Schedule: ""},
	}

	registered := svc.RegisterJobs(jobs)
	assert.Equal(t, 2, registered, "malformed schedules are skipped, not fatal")
	assert.Len(t, svc.Scheduler().Tasks(), 2)

	// The policy override survived registration.
	for _, st := range svc.Scheduler().Tasks() {
		if st.Name == "b" {
			assert.Equal(t, 5, st.MaxRetries)
			assert.Equal(t, time.Minute, st.Timeout)
		}
	}
}

func TestRegisterJobsBeforeInitialize(t *testing.T) {
	svc := NewService(testConfig(), executor.NewRegistry(), nil)
	assert.Equal(t, 0, svc.RegisterJobs([]config.Job{{Name: "j", Task: "t", Schedule: "every 1s"}}))
}

func TestFailingTaskKeepsSchedulerAlive(t *testing.T) {
	reg := executor.NewRegistry()
	failing := &countingTask{name: "broken", err: errors.New("boom")}
	healthy := &countingTask{name: "fine"}
	reg.Register(failing)
	reg.Register(healthy)

	svc := NewService(testConfig(), reg, nil, WithPoolOptions(executor.WithBaseBackoff(0)))
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx))
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	_, err := svc.Scheduler().ScheduleInterval("broken", 20*time.Millisecond, nil, 5)
	require.NoError(t, err)
	_, err = svc.Scheduler().ScheduleInterval("fine", 20*time.Millisecond, nil, 5)
	require.NoError(t, err)

	// Failures surface as results; the scheduler keeps firing both tasks.
	require.Eventually(t, func() bool {
		stats := svc.Monitor().Stats()
		return stats.Failed >= 1 && stats.Succeeded >= 2 && failing.runCount() >= 3
	}, 3*time.Second, 10*time.Millisecond)
	assert.True(t, svc.Scheduler().Healthy())
}
