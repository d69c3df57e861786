// Package httpcheck probes an HTTP endpoint and fails on non-2xx/3xx.
package httpcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"taskspace/internal/domain"
)

// Task performs a single HTTP request.
// Parameters: url (required), method (default GET), timeout_seconds
// (default 30).
type Task struct {
	Client *http.Client
}

func (t *Task) Name() string { return "httpcheck" }

func (t *Task) Execute(ctx context.Context, tc domain.TaskContext) (any, error) {
	url, _ := tc.Parameters["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	method, _ := tc.Parameters["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return map[string]any{
		"url":         url,
		"status_code": resp.StatusCode,
		"latency_ms":  time.Since(start).Milliseconds(),
	}, nil
}
