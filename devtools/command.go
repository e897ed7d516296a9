package devtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gitagent.dev/config"
	"gitagent.dev/devtools/bashkit"
	"gitagent.dev/runner"
)

// RunCommand executes command with bash in the repository root. A timeout of
// zero uses cfg.CommandTimeout. A failing command reports its stdout and
// stderr as the status.
func RunCommand(ctx context.Context, cfg *config.Config, command string, timeout time.Duration) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.New("empty command")
	}
	if err := bashkit.Check(command); err != nil {
		return "", err
	}
	if cmds, err := bashkit.ExtractCommands(command); err == nil {
		var missing []string
		for _, c := range cmds {
			if !runner.Available(c) {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return fmt.Sprintf("Command not found: %s", strings.Join(missing, ", ")), nil
		}
	}
	if timeout <= 0 {
		timeout = cfg.CommandTimeout
	}
	shell := firstAvailable("bash", "sh")
	if shell == "" {
		return "", errors.New("no shell available")
	}
	slog.InfoContext(ctx, "running command", "command", cfg.Redact(command), "timeout", timeout)

	res, err := runner.Run(ctx, runner.Command{
		Args:    []string{shell, "-c", command},
		Dir:     cfg.Root(),
		Timeout: timeout,
	})
	if res.TimedOut {
		return fmt.Sprintf("%s\nCommand timed out after %s", res.Combined(), timeout), nil
	}
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("%s\n%s", res.Stdout, res.Stderr), nil
	}
	if out := res.Combined(); out != "" {
		return out, nil
	}
	return "Command completed with no output.", nil
}
