package git_tools

import (
	"context"
	"fmt"
	"strings"

	"gitagent.dev/config"
)

// Stash pushes the working-tree changes onto the stash, or pops the latest
// entry when pop is set. message labels a pushed entry.
func Stash(ctx context.Context, cfg *config.Config, pop bool, message string) (string, error) {
	root, err := RequireRepo(cfg)
	if err != nil {
		return "", err
	}
	if pop {
		out, err := combined(ctx, root, "stash", "pop")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Popped stashed changes:\n%s", strings.TrimSpace(out)), nil
	}

	args := []string{"stash", "push"}
	if message != "" {
		args = append(args, "-m", message)
	}
	out, err := combined(ctx, root, args...)
	if err != nil {
		return "", err
	}
	if strings.Contains(out, "No local changes to save") {
		return "No changes to stash", nil
	}
	return fmt.Sprintf("Stashed changes:\n%s", strings.TrimSpace(out)), nil
}
