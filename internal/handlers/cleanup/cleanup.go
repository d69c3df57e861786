// Package cleanup prunes old rows from the result history store.
package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"taskspace/internal/domain"
	"taskspace/internal/history"
)

const defaultOlderThanDays = 30

// Task deletes history records older than the configured window.
// Parameters: older_than_days (number, default 30).
type Task struct {
	Store *history.Store
}

func (t *Task) Name() string { return "cleanup" }

func (t *Task) Execute(ctx context.Context, tc domain.TaskContext) (any, error) {
	days := defaultOlderThanDays
	if v, ok := tc.Parameters["older_than_days"]; ok {
		switch n := v.(type) {
		case int:
			days = n
		case float64:
			days = int(n)
		}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := t.Store.PruneBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("history cleanup done")
	return map[string]any{"deleted_records": deleted, "cutoff": cutoff}, nil
}
