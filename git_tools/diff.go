package git_tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gitagent.dev/config"
	"gitagent.dev/fileops"
)

// Diff returns the working-tree diff of path, or of the whole repository
// when path is empty. Untracked files and staged-only changes are reported
// in place of an empty diff.
func Diff(ctx context.Context, cfg *config.Config, path string) (string, error) {
	root, err := RequireRepo(cfg)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return repoDiff(ctx, root)
	}

	abs, rel, err := fileops.Resolve(cfg, path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("File '%s' not found", rel), nil
	}
	diff, err := run(ctx, root, "diff", "--", rel)
	if err != nil {
		return "", err
	}
	if diff = strings.TrimRight(diff, "\n"); diff != "" {
		return diff, nil
	}
	untracked, err := run(ctx, root, "ls-files", "--others", "--exclude-standard", "--", rel)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(untracked) != "" {
		return fmt.Sprintf("File '%s' is untracked. Use 'git add %s' to stage it.", rel, rel), nil
	}
	staged, err := run(ctx, root, "diff", "--staged", "--", rel)
	if err != nil {
		return "", err
	}
	if staged = strings.TrimRight(staged, "\n"); staged != "" {
		return fmt.Sprintf("File '%s' has staged changes:\n%s", rel, staged), nil
	}
	return fmt.Sprintf("No changes in '%s'", rel), nil
}

func repoDiff(ctx context.Context, root string) (string, error) {
	diff, err := run(ctx, root, "diff")
	if err != nil {
		return "", err
	}
	if diff = strings.TrimRight(diff, "\n"); diff != "" {
		return diff, nil
	}
	staged, err := run(ctx, root, "diff", "--staged")
	if err != nil {
		return "", err
	}
	if staged = strings.TrimRight(staged, "\n"); staged != "" {
		return fmt.Sprintf("There are staged changes:\n%s", staged), nil
	}
	return "No changes in the repository", nil
}
