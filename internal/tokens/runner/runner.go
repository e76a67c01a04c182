package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
)

// Runner executes an external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands attached to the given standard streams so that
// interactive programs can talk to the user directly.
type ExecRunner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewExecRunner returns a runner that inherits the process's terminal.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return NewExecRunnerWithIO(os.Stdin, os.Stdout, os.Stderr, logger)
}

// NewExecRunnerWithIO returns a runner using the provided streams.
func NewExecRunnerWithIO(stdin io.Reader, stdout, stderr io.Writer, logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecRunner{stdin: stdin, stdout: stdout, stderr: stderr, logger: logger}
}

// Run starts name with args and waits for it. A launch failure or a non-zero
// exit status is reported as domain.ErrSubprocess.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	commandLine := strings.TrimSpace(name + " " + strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	r.logger.Debug("running external command", "command", commandLine)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: '%s' failed with status %d", domain.ErrSubprocess, commandLine, exitErr.ExitCode())
		}
		return fmt.Errorf("%w: failed to execute '%s', is '%s' in your PATH?: %w", domain.ErrSubprocess, commandLine, name, err)
	}
	r.logger.Debug("external command finished", "command", commandLine)
	return nil
}
