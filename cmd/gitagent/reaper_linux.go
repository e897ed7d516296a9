//go:build linux

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// startReaper makes this process reap orphaned children, which pile up as
// zombies when gitagent runs as PID 1 in a container and tools spawn
// background processes.
func startReaper(ctx context.Context) error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return err
	}
	go reapZombies(ctx)
	return nil
}

// reapZombies runs until ctx is cancelled.
func reapZombies(ctx context.Context) {
	sig := make(chan os.Signal, 16)
	signal.Notify(sig, unix.SIGCHLD)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
		}
	Reap:
		for {
			var status unix.WaitStatus
			pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
			switch {
			case pid > 0:
				slog.DebugContext(ctx, "reaped child", "pid", pid, "exit", status.ExitStatus())
			case err == unix.EINTR:
				// interrupted: retry
			case err == unix.ECHILD || pid == 0:
				break Reap
			default:
				slog.WarnContext(ctx, "wait4 error", "error", err)
				break Reap
			}
		}
	}
}
