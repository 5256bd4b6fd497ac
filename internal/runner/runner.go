// Package runner executes job commands through the shell. It is a
// collaborator outside the queue core: the core only ever sees the
// structured Result.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long a timed-out command gets between
// SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Result is the outcome of one command execution. Execute never
// returns a Go error — spawn failures, non-zero exits, and timeouts all
// land here, which is what lets the retry state machine treat every
// outcome uniformly.
type Result struct {
	Success  bool
	Output   string
	Error    string
	ExitCode int
}

// Runner runs commands under `sh -c` with a hard timeout.
type Runner struct {
	gracePeriod time.Duration
}

// New creates a Runner with the default kill grace period.
func New() *Runner {
	return &Runner{gracePeriod: DefaultGracePeriod}
}

// NewWithGracePeriod creates a Runner with a custom SIGTERM-to-SIGKILL
// grace period. Used by tests to keep timeout cases fast.
func NewWithGracePeriod(grace time.Duration) *Runner {
	return &Runner{gracePeriod: grace}
}

// Execute runs command with the given timeout. On timeout the process
// is sent SIGTERM and, if it ignores that for the grace period, SIGKILL.
// Stdout is captured as Output (trailing whitespace trimmed); stderr
// and spawn errors are folded into Error.
func (r *Runner) Execute(command string, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.gracePeriod

	err := cmd.Run()

	res := Result{
		Output:   strings.TrimSpace(stdout.String()),
		ExitCode: exitCode(cmd, err),
	}

	switch {
	case err == nil:
		res.Success = true
	case ctx.Err() == context.DeadlineExceeded:
		res.Error = fmt.Sprintf("command timed out after %s", timeout)
	default:
		res.Error = errorMessage(err, stderr.String())
	}
	return res
}

// exitCode extracts the process exit code; -1 when the process never
// ran or was killed by a signal.
func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// errorMessage prefers the command's own stderr over the Go-level
// error, which is usually just "exit status N".
func errorMessage(err error, stderr string) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	return err.Error()
}
