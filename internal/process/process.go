// Package process runs external commands with a deadline, bounded output
// capture and a uniform exit contract. Commands run in their own process
// group so that a deadline or cancellation kills every descendant.
package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

const (
	DefaultShell          = "sh"
	DefaultMaxOutputBytes = 1 << 20
	DefaultWaitDelay      = 500 * time.Millisecond
)

// Spec describes one command invocation.
type Spec struct {
	// Command is passed to the shell as "-c Command".
	Command string
	Dir     string
	// Env is appended to the current environment.
	Env   []string
	Stdin []byte
	// Timeout bounds the run; 0 means only ctx bounds it.
	Timeout time.Duration
}

// Result is the exit contract of a run. Exactly one of StartErr, TimedOut,
// Cancelled or a plain exit applies.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	Duration  time.Duration

	TimedOut  bool
	Cancelled bool
	// StartErr is set when the process could not be spawned.
	StartErr error
}

// Success reports a clean zero exit.
func (r Result) Success() bool {
	return r.StartErr == nil && !r.TimedOut && !r.Cancelled && r.ExitCode == 0
}

// Runner spawns shell commands. The zero value is usable.
type Runner struct {
	Shell          string
	MaxOutputBytes int64
	// WaitDelay bounds how long Run waits for output pipes after a kill.
	WaitDelay time.Duration
}

// NewRunner creates a runner for the given shell.
func NewRunner(shell string, maxOutputBytes int64) *Runner {
	return &Runner{Shell: shell, MaxOutputBytes: maxOutputBytes}
}

// Run executes spec and waits for it and all process-group members to be
// reaped. It never returns an error; failures are described by Result.
func (r *Runner) Run(ctx context.Context, spec Spec) Result {
	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}
	maxOutput := r.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}
	waitDelay := r.WaitDelay
	if waitDelay <= 0 {
		waitDelay = DefaultWaitDelay
	}

	var (
		execCtx context.Context
		cancel  context.CancelFunc
	)
	if spec.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cmd := exec.CommandContext(execCtx, shell, "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	if spec.Stdin != nil {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: maxOutput}
	stderr := &limitedWriter{w: &stderrBuf, max: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()

	res := Result{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Truncated: stdout.truncated || stderr.truncated,
		Duration:  time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case ctx.Err() != nil:
		res.Cancelled = true
		res.ExitCode = -1
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay):
		// The shell exited cleanly but a descendant held the pipes open.
		res.ExitCode = cmd.ProcessState.ExitCode()
	default:
		res.StartErr = err
		res.ExitCode = -1
	}
	return res
}
