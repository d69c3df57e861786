// Package report summarizes recent task outcomes from the history store.
package report

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"taskspace/internal/domain"
	"taskspace/internal/history"
)

// Task builds a per-type outcome summary over a window.
// Parameters: window (duration string, default "24h").
type Task struct {
	Store *history.Store
}

func (t *Task) Name() string { return "report" }

func (t *Task) Execute(ctx context.Context, tc domain.TaskContext) (any, error) {
	window := 24 * time.Hour
	if v, ok := tc.Parameters["window"].(string); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			window = d
		}
	}

	since := time.Now().UTC().Add(-window)
	summaries, err := t.Store.Summarize(ctx, since)
	if err != nil {
		return nil, err
	}

	log.Info().Int("task_types", len(summaries)).Dur("window", window).Msg("report generated")
	return map[string]any{
		"since":     since,
		"window":    window.String(),
		"summaries": summaries,
		"generated": time.Now().UTC(),
	}, nil
}
