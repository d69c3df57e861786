package executor

import (
	"context"
	"sync"

	"taskspace/internal/domain"
)

// Runnable is the contract exposed to task authors: the engine supplies the
// context, timeout enforcement, retry and metrics; the author supplies only
// domain logic and may return any error to signal failure.
type Runnable interface {
	Name() string
	Execute(ctx context.Context, tc domain.TaskContext) (any, error)
}

// BeforeHook runs before each attempt. Returning an error fails the attempt
// without invoking Execute.
type BeforeHook interface {
	BeforeExecute(ctx context.Context, tc domain.TaskContext) error
}

// AfterHook runs after a successful attempt.
type AfterHook interface {
	AfterExecute(ctx context.Context, tc domain.TaskContext, result any)
}

// Registry maps task type names to their Runnable. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	runnables map[string]Runnable
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runnables: make(map[string]Runnable)}
}

// Register adds a runnable under its own name.
func (r *Registry) Register(rn Runnable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runnables[rn.Name()] = rn
}

// Get returns the runnable for a task type, or NotRunnableError.
func (r *Registry) Get(taskType string) (Runnable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.runnables[taskType]
	if !ok {
		return nil, &domain.NotRunnableError{TaskType: taskType}
	}
	return rn, nil
}

// Types lists the registered task type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.runnables))
	for name := range r.runnables {
		out = append(out, name)
	}
	return out
}
