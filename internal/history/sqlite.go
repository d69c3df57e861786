// Package history persists observed task results to SQLite. Scheduling
// state itself stays memory-resident; only the outcome log survives a
// restart, feeding the report and cleanup tasks and the history API.
package history

import (
	"context"
	"database/sql"
	"time"

	"taskspace/internal/domain"
)

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS task_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id TEXT NOT NULL,
  task_type TEXT NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('success','failure','retry')),
  error TEXT NOT NULL DEFAULT '',
  attempt INTEGER NOT NULL DEFAULT 1,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  finished_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_results_finished ON task_results(finished_at);
CREATE INDEX IF NOT EXISTS idx_results_type ON task_results(task_type, status);
`
	_, err := db.Exec(schema)
	return err
}

// Record is one persisted execution outcome.
type Record struct {
	TaskID     string    `json:"task_id"`
	TaskType   string    `json:"task_type"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	DurationMs int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// Summary aggregates outcomes per task type over a window.
type Summary struct {
	TaskType  string `json:"task_type"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Retried   int    `json:"retried"`
}

// Store writes and reads the task_results table.
type Store struct{ db *sql.DB }

// NewStore wraps an open sqlite handle.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Save appends one result.
func (s *Store) Save(ctx context.Context, r domain.TaskResult) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO task_results (task_id,task_type,status,error,attempt,duration_ms,finished_at)
VALUES (?,?,?,?,?,?,?)`,
		r.TaskID, r.TaskType, string(r.Status), r.Error, r.Attempt,
		r.Duration.Milliseconds(), r.FinishedAt.UTC())
	return err
}

// Recent returns the newest results, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT task_id,task_type,status,error,attempt,duration_ms,finished_at
FROM task_results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.TaskID, &r.TaskType, &r.Status, &r.Error, &r.Attempt, &r.DurationMs, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summarize aggregates outcomes per task type since the given time.
func (s *Store) Summarize(ctx context.Context, since time.Time) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT task_type,
  SUM(CASE WHEN status='success' THEN 1 ELSE 0 END),
  SUM(CASE WHEN status='failure' THEN 1 ELSE 0 END),
  SUM(CASE WHEN status='retry' THEN 1 ELSE 0 END)
FROM task_results WHERE finished_at >= ?
GROUP BY task_type ORDER BY task_type`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.TaskType, &s.Succeeded, &s.Failed, &s.Retried); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneBefore deletes results older than the cutoff and returns the count.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_results WHERE finished_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Healthy reports whether the database answers a ping.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}
