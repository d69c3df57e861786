package report

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"taskspace/internal/domain"
	"taskspace/internal/history"
)

func seedStore(t *testing.T) *history.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?cache=shared&mode=rwc"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, history.EnsureSchema(db))

	store := history.NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, r := range []domain.TaskResult{
		{TaskID: "a", TaskType: "cleanup", Status: domain.StatusSuccess, Attempt: 1, FinishedAt: now},
		{TaskID: "b", TaskType: "cleanup", Status: domain.StatusFailure, Attempt: 3, FinishedAt: now},
		{TaskID: "c", TaskType: "httpcheck", Status: domain.StatusSuccess, Attempt: 1, FinishedAt: now.Add(-48 * time.Hour)},
	} {
		require.NoError(t, store.Save(ctx, r))
	}
	return store
}

func TestReportDefaultWindow(t *testing.T) {
	store := seedStore(t)
	task := &Task{Store: store}

	out, err := task.Execute(context.Background(), domain.TaskContext{Parameters: map[string]any{}})
	require.NoError(t, err)

	result := out.(map[string]any)
	summaries := result["summaries"].([]history.Summary)
	require.Len(t, summaries, 1, "48h-old result falls outside the default 24h window")
	assert.Equal(t, history.Summary{TaskType: "cleanup", Succeeded: 1, Failed: 1}, summaries[0])
	assert.Equal(t, "24h0m0s", result["window"])
}

func TestReportCustomWindow(t *testing.T) {
	store := seedStore(t)
	task := &Task{Store: store}

	out, err := task.Execute(context.Background(), domain.TaskContext{
		Parameters: map[string]any{"window": "72h"},
	})
	require.NoError(t, err)

	summaries := out.(map[string]any)["summaries"].([]history.Summary)
	assert.Len(t, summaries, 2)
}

func TestReportIgnoresBadWindow(t *testing.T) {
	store := seedStore(t)
	task := &Task{Store: store}

	out, err := task.Execute(context.Background(), domain.TaskContext{
		Parameters: map[string]any{"window": "bogus"},
	})
	require.NoError(t, err)
	assert.Equal(t, "24h0m0s", out.(map[string]any)["window"])
}
