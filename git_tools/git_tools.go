// Package git_tools drives the git CLI against the working tree:
// cloning, committing and pushing, branches, status, diffs and stashes.
package git_tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gitagent.dev/config"
	"gitagent.dev/fileops"
	"gitagent.dev/skribe"
)

// ErrNotRepository is returned when the working tree has no .git directory.
var ErrNotRepository = errors.New("not a git repository")

// run executes git in repoDir and returns its stdout.
// Stderr is folded into the error.
func run(ctx context.Context, repoDir string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repoDir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		out := strings.TrimSpace(stderr.String() + stdout.String())
		return stdout.String(), fmt.Errorf("error executing git %s: %w - %s", args[0], err, skribe.RedactURL(out))
	}
	return stdout.String(), nil
}

// combined executes git in repoDir and returns stdout and stderr interleaved.
func combined(ctx context.Context, repoDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repoDir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("error executing git %s: %w - %s", args[0], err, skribe.RedactURL(strings.TrimSpace(string(out))))
	}
	return string(out), nil
}

// IsRepo reports whether dir is the top of a git working tree.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// RequireRepo returns the absolute repository root, or ErrNotRepository.
func RequireRepo(cfg *config.Config) (string, error) {
	root := cfg.Root()
	if !IsRepo(root) {
		return "", fmt.Errorf("%s is %w", cfg.RepoPath, ErrNotRepository)
	}
	return root, nil
}

// CommitAndPush stages exactly path, commits it with message and pushes
// the current branch to origin. A path without changes is reported, not
// committed.
func CommitAndPush(ctx context.Context, cfg *config.Config, path, message string) (string, error) {
	root, err := RequireRepo(cfg)
	if err != nil {
		return "", err
	}
	_, rel, err := fileops.Resolve(cfg, path)
	if err != nil {
		return "", err
	}
	if _, err := run(ctx, root, "add", "--", rel); err != nil {
		return "", err
	}
	pending, err := run(ctx, root, "status", "--porcelain", "--", rel)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pending) == "" {
		return fmt.Sprintf("No changes to commit for %s", rel), nil
	}
	if _, err := run(ctx, root, "commit", "-m", message, "--", rel); err != nil {
		return "", err
	}
	if err := EnsureRemote(ctx, cfg); err != nil {
		return "", err
	}
	if _, err := run(ctx, root, "push", "--set-upstream", "origin", "HEAD"); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "pushed commit", "path", rel, "message", message)
	return fmt.Sprintf("Changes pushed: %s", message), nil
}

// EnsureRemote points origin at the credentialed remote URL unless it
// already carries the token. Without a token, an existing origin is left alone.
func EnsureRemote(ctx context.Context, cfg *config.Config) error {
	root := cfg.Root()
	current, err := run(ctx, root, "remote", "get-url", "origin")
	if err != nil {
		if cfg.RequireRemote() != nil {
			return nil
		}
		slog.InfoContext(ctx, "adding origin", "url", cfg.RedactedRemoteURL())
		_, err := run(ctx, root, "remote", "add", "origin", cfg.RemoteURL())
		return err
	}
	if cfg.Token == "" || strings.Contains(current, cfg.Token) {
		return nil
	}
	if cfg.RequireRemote() != nil {
		return nil
	}
	slog.InfoContext(ctx, "updating origin url", "url", cfg.RedactedRemoteURL())
	_, err = run(ctx, root, "remote", "set-url", "origin", cfg.RemoteURL())
	return err
}

// CurrentBranch returns the checked-out branch, or "DETACHED_HEAD".
func CurrentBranch(ctx context.Context, repoDir string) (string, error) {
	out, err := run(ctx, repoDir, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		if _, verr := run(ctx, repoDir, "rev-parse", "--git-dir"); verr != nil {
			return "", verr
		}
		return "DETACHED_HEAD", nil
	}
	return strings.TrimSpace(out), nil
}

// Branches lists the local branches.
func Branches(ctx context.Context, repoDir string) ([]string, error) {
	out, err := run(ctx, repoDir, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// BranchExists reports whether the local branch name exists.
func BranchExists(ctx context.Context, repoDir, name string) bool {
	_, err := run(ctx, repoDir, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

func remoteBranchExists(ctx context.Context, repoDir, name string) bool {
	_, err := run(ctx, repoDir, "rev-parse", "--verify", "--quiet", "refs/remotes/origin/"+name)
	return err == nil
}

func validBranchName(ctx context.Context, repoDir, name string) error {
	if _, err := run(ctx, repoDir, "check-ref-format", "--branch", name); err != nil {
		return fmt.Errorf("invalid branch name %q", name)
	}
	return nil
}

// CreateBranch creates name from HEAD and switches to it.
// An existing branch is reported and the current branch is left unchanged.
func CreateBranch(ctx context.Context, cfg *config.Config, name string) (string, error) {
	root, err := RequireRepo(cfg)
	if err != nil {
		return "", err
	}
	if err := validBranchName(ctx, root, name); err != nil {
		return "", err
	}
	if BranchExists(ctx, root, name) {
		return fmt.Sprintf("Branch '%s' already exists", name), nil
	}
	if _, err := run(ctx, root, "checkout", "-b", name); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "created branch", "branch", name)
	return fmt.Sprintf("Created new branch '%s' and switched to it", name), nil
}

// CheckoutBranch switches to name, creating a tracking branch when it
// only exists on origin.
func CheckoutBranch(ctx context.Context, cfg *config.Config, name string) (string, error) {
	root, err := RequireRepo(cfg)
	if err != nil {
		return "", err
	}
	current, err := CurrentBranch(ctx, root)
	if err != nil {
		return "", err
	}
	if current == name {
		return fmt.Sprintf("Already on branch '%s'", name), nil
	}
	switch {
	case BranchExists(ctx, root, name):
		_, err = run(ctx, root, "checkout", name)
	case remoteBranchExists(ctx, root, name):
		_, err = run(ctx, root, "checkout", "-b", name, "--track", "origin/"+name)
	default:
		return fmt.Sprintf("Branch '%s' does not exist", name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Switched from branch '%s' to '%s'", current, name), nil
}
