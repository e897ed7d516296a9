// Package devtools implements the developer tools of the tool surface:
// code search, tests, dependency installs, linting, pull requests and
// arbitrary commands. Each drives an external collaborator through runner.
package devtools

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"gitagent.dev/config"
	"gitagent.dev/fileops"
	"gitagent.dev/runner"
)

// Match is one search hit.
type Match struct {
	File string
	Line int
	Text string
}

func (m Match) String() string {
	return fmt.Sprintf("%s:%d: %s", m.File, m.Line, m.Text)
}

// SearchCode looks for the literal query in files whose name matches
// pattern ("*" when empty). It uses ripgrep when installed, grep otherwise.
func SearchCode(ctx context.Context, cfg *config.Config, query, pattern string) (string, error) {
	if pattern == "" {
		pattern = "*"
	}
	matches, err := search(ctx, cfg, query, pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for '%s'", query), nil
	}
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = m.String()
	}
	return fmt.Sprintf("Found %d matches for '%s':\n%s", len(matches), query, fileops.Cap(lines, cfg.ListLimit, "matches")), nil
}

func search(ctx context.Context, cfg *config.Config, query, pattern string) ([]Match, error) {
	var args []string
	if runner.Available("rg") {
		args = []string{"rg", "--line-number", "--no-heading", "--color", "never", "--fixed-strings", "--hidden", "--glob", "!.git", "--glob", pattern, "--", query, "."}
	} else {
		args = []string{"grep", "-r", "-n", "-F", "--exclude-dir=.git", "--include", pattern, "--", query, "."}
	}
	slog.DebugContext(ctx, "searching code", "tool", args[0], "query", query, "pattern", pattern)

	res, err := runner.Run(ctx, runner.Command{Args: args, Dir: cfg.Root(), Timeout: cfg.CommandTimeout})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	// Both tools exit 1 when nothing matched.
	switch res.ExitCode {
	case 0:
	case 1:
		return nil, nil
	default:
		return nil, errors.New("search failed: " + strings.TrimSpace(res.Stderr))
	}
	return parseMatches(res.Stdout), nil
}

// parseMatches reads "file:line:text" lines, sorted by file then line.
func parseMatches(out string) []Match {
	var matches []Match
	for line := range strings.Lines(out) {
		parts := strings.SplitN(strings.TrimRight(line, "\r\n"), ":", 3)
		if len(parts) < 3 {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		matches = append(matches, Match{
			File: strings.TrimPrefix(parts[0], "./"),
			Line: n,
			Text: strings.TrimSpace(parts[2]),
		})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Or(strings.Compare(a.File, b.File), cmp.Compare(a.Line, b.Line))
	})
	return matches
}
