package omnifocus

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Swappable in tests; osascript only exists on macOS with OmniFocus
// installed.
var runOsascript = func(ctx context.Context, script string) (string, error) {
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

const (
	taskCompletedScript = `tell application "OmniFocus" to tell default document to get completed of first flattened task whose id is "%s"`
	closeTaskScript     = `tell application "OmniFocus" to tell default document to mark complete (first flattened task whose id is "%s")`
)

// scriptRunner drives OmniFocus through its AppleScript dictionary.
type scriptRunner struct{}

func newScriptRunner() *scriptRunner {
	return &scriptRunner{}
}

// taskCompleted asks the running application whether the task is
// already complete.
func (r *scriptRunner) taskCompleted(ctx context.Context, identifier string) (bool, error) {
	out, err := runOsascript(ctx, fmt.Sprintf(taskCompletedScript, identifier))
	if err != nil {
		return false, fmt.Errorf("checking completion of task %s: %w", identifier, err)
	}
	return out == "true", nil
}

// closeTask marks the task complete in the running application.
func (r *scriptRunner) closeTask(ctx context.Context, identifier string) error {
	if _, err := runOsascript(ctx, fmt.Sprintf(closeTaskScript, identifier)); err != nil {
		return fmt.Errorf("closing task %s: %w", identifier, err)
	}
	return nil
}
