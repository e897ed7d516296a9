// Package runner executes collaborator processes (git, gh, pytest, pip, linters)
// with a deadline, killing the whole process group when it passes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"gitagent.dev/skribe"
)

// ErrNotFound is returned when the executable is not installed.
var ErrNotFound = errors.New("executable not found")

type Command struct {
	Args []string
	Dir  string
	// Env replaces the process environment when non-nil.
	Env []string
	// Timeout of zero means no deadline beyond ctx.
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Combined joins stdout and stderr, skipping empty streams.
func (r Result) Combined() string {
	var parts []string
	for _, s := range []string{r.Stdout, r.Stderr} {
		if s = strings.TrimRight(s, "\n"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Run executes cmd. A non-zero exit is not an error: inspect Result.ExitCode.
// A timeout returns the partial Result together with an error.
func Run(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Args) == 0 {
		return Result{}, errors.New("command args required")
	}
	if _, err := exec.LookPath(cmd.Args[0]); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%s: %w", cmd.Args[0], ErrNotFound)
	}

	execCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	// Can't use CombinedOutput: the process group has to be killed on timeout.
	c := exec.CommandContext(execCtx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	c.Stdin = nil
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	if err := c.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", cmd.Args[0], err)
	}
	proc := c.Process
	done := make(chan struct{})
	go func() {
		select {
		case <-execCtx.Done():
			if errors.Is(execCtx.Err(), context.DeadlineExceeded) && proc != nil {
				syscall.Kill(-proc.Pid, syscall.SIGKILL)
			}
		case <-done:
		}
	}()
	err := c.Wait()
	close(done)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
		Duration: time.Since(start),
	}
	slog.DebugContext(ctx, "ran command", "cmd", skribe.RedactURL(cmd.String()), "dir", cmd.Dir, "exit_code", res.ExitCode, "duration", res.Duration)

	if cmd.Timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		return res, fmt.Errorf("command timed out after %s", cmd.Timeout)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, fmt.Errorf("%s: %w", cmd.Args[0], err)
	}
	return res, nil
}

// Available reports whether name is on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
