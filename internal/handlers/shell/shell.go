// Package shell runs a command and captures its combined output.
package shell

import (
	"context"
	"fmt"
	"os/exec"

	"taskspace/internal/domain"
)

// Task executes a local command.
// Parameters: command (required), args (list of strings).
type Task struct{}

func (Task) Name() string { return "shell" }

func (Task) Execute(ctx context.Context, tc domain.TaskContext) (any, error) {
	command, _ := tc.Parameters["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	var args []string
	if raw, ok := tc.Parameters["args"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				args = append(args, s)
			}
		}
	}

	cmd := exec.CommandContext(ctx, command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("shell error: %v; out=%s", err, string(out))
	}
	return map[string]any{"output": string(out)}, nil
}
