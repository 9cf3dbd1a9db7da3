// Package command wraps external tool execution behind a small Runner
// interface so the expansion and probing logic can be exercised in tests
// without real disk images or packages.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrExternalTool marks failures of shelled-out tools. The wrapped message
// always carries the tool's combined output so nothing is lost in reporting.
var ErrExternalTool = errors.New("external tool error")

// Runner executes an external tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct {
	logger *slog.Logger
}

// New returns a Runner backed by os/exec. The logger may be nil.
func New(logger *slog.Logger) Runner {
	return &execRunner{logger: logger}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.logger != nil {
		r.logger.Debug("running external tool", "tool", name, "args", strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, name, args...)
	raw, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(raw))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, fmt.Errorf("%w: %s exited %d: %s", ErrExternalTool, name, exitErr.ExitCode(), output)
		}
		return output, fmt.Errorf("%w: %s: %v", ErrExternalTool, name, err)
	}
	return output, nil
}
