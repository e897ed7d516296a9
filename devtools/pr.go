package devtools

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"gitagent.dev/config"
	"gitagent.dev/git_tools"
	"gitagent.dev/runner"
)

// CreatePullRequest opens a pull request from branch with the gh CLI.
// The base is the configured default branch, else main, else master.
func CreatePullRequest(ctx context.Context, cfg *config.Config, branch, title, description string) (string, error) {
	root, err := git_tools.RequireRepo(cfg)
	if err != nil {
		return "", err
	}
	branches, err := git_tools.Branches(ctx, root)
	if err != nil {
		return "", err
	}
	if !slices.Contains(branches, branch) {
		return fmt.Sprintf("Branch '%s' does not exist", branch), nil
	}
	base := baseBranch(cfg, branches)

	if !runner.Available("gh") {
		return "GitHub CLI not available. Please install GitHub CLI (gh) or implement API-based PR creation.", nil
	}
	if title == "" {
		title = "New Pull Request"
	}
	args := []string{"gh", "pr", "create", "--base", base, "--head", branch, "--title", title, "--body", description}
	if cfg.Repo != "" {
		args = append(args, "--repo", path.Join(cfg.RemoteHost, cfg.Repo))
	}
	slog.InfoContext(ctx, "creating pull request", "head", branch, "base", base)

	res, err := runner.Run(ctx, runner.Command{Args: args, Dir: root, Env: cfg.Environ()})
	if err != nil {
		return "", fmt.Errorf("error creating pull request: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("error creating pull request:\n%s", cfg.Redact(strings.TrimSpace(res.Stderr)))
	}
	return "Pull request created successfully:\n" + res.Stdout, nil
}

func baseBranch(cfg *config.Config, branches []string) string {
	for _, b := range []string{cfg.DefaultBranch, "main", "master"} {
		if b != "" && slices.Contains(branches, b) {
			return b
		}
	}
	if cfg.DefaultBranch != "" {
		return cfg.DefaultBranch
	}
	return "main"
}
