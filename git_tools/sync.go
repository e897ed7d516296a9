package git_tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gitagent.dev/config"
)

// Sync makes the working tree a current clone of the remote: it clones when
// the directory is absent, pulls when it is already a repository and
// re-clones into a directory that exists but is not a repository.
func Sync(ctx context.Context, cfg *config.Config) (string, error) {
	if err := cfg.RequireRemote(); err != nil {
		return "", err
	}
	root := cfg.Root()
	slog.InfoContext(ctx, "syncing repository", "path", root, "url", cfg.RedactedRemoteURL())

	var status string
	_, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := clone(ctx, cfg, root); err != nil {
			return "", err
		}
		status = fmt.Sprintf("Repository cloned to %s", cfg.RepoPath)
	case err != nil:
		return "", fmt.Errorf("stat %s: %w", cfg.RepoPath, err)
	case IsRepo(root):
		if err := EnsureRemote(ctx, cfg); err != nil {
			return "", err
		}
		if _, err := run(ctx, root, "pull"); err != nil {
			return "", err
		}
		return "Repository already exists locally. Pulled latest changes.", nil
	default:
		slog.InfoContext(ctx, "directory is not a repository, re-cloning", "path", root)
		if err := emptyDir(root); err != nil {
			return "", err
		}
		if err := clone(ctx, cfg, root); err != nil {
			return "", err
		}
		status = fmt.Sprintf("Repository initialized and cloned to %s", cfg.RepoPath)
	}

	if current, err := CurrentBranch(ctx, root); err == nil && current != cfg.DefaultBranch && remoteBranchExists(ctx, root, cfg.DefaultBranch) {
		if _, err := CheckoutBranch(ctx, cfg, cfg.DefaultBranch); err != nil {
			return "", err
		}
	}
	return status, nil
}

func clone(ctx context.Context, cfg *config.Config, root string) error {
	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", parent, err)
	}
	_, err := run(ctx, parent, "clone", cfg.RemoteURL(), root)
	return err
}

func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
	}
	return nil
}
