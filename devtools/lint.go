package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"gitagent.dev/config"
	"gitagent.dev/fileops"
	"gitagent.dev/runner"
)

// PylintMessage is one entry of pylint's JSON report.
type PylintMessage struct {
	Type      string `json:"type"`
	Module    string `json:"module"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	MessageID string `json:"message-id"`
}

// linterReport is the outcome of one linter. A nil report means the
// linter is not installed.
type linterReport struct {
	issues []string
	// raw is output that could not be parsed into issues.
	raw string
}

// flake8 exits 1 when it finds issues.
func runFlake8(ctx context.Context, cfg *config.Config, targets []string) (*linterReport, error) {
	if !runner.Available("flake8") {
		return nil, nil
	}
	res, err := runner.Run(ctx, runner.Command{
		Args:    append([]string{"flake8"}, targets...),
		Dir:     cfg.Root(),
		Timeout: cfg.CommandTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("flake8: %w", err)
	}
	if res.ExitCode > 1 {
		return nil, fmt.Errorf("flake8 exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	rep := &linterReport{}
	for line := range strings.Lines(res.Stdout) {
		if line = strings.TrimSpace(line); line != "" {
			rep.issues = append(rep.issues, line)
		}
	}
	return rep, nil
}

// pylint's exit status is a bit mask of message categories; 32 is a usage error.
func runPylint(ctx context.Context, cfg *config.Config, targets []string, describe func(PylintMessage) string) (*linterReport, error) {
	if !runner.Available("pylint") {
		return nil, nil
	}
	if len(targets) == 0 {
		return &linterReport{}, nil
	}
	res, err := runner.Run(ctx, runner.Command{
		Args:    append([]string{"pylint", "--output-format=json"}, targets...),
		Dir:     cfg.Root(),
		Timeout: cfg.CommandTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("pylint: %w", err)
	}
	if res.ExitCode&32 != 0 || (res.ExitCode != 0 && strings.TrimSpace(res.Stdout) == "") {
		return nil, fmt.Errorf("pylint exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	var msgs []PylintMessage
	if err := json.Unmarshal([]byte(res.Stdout), &msgs); err != nil {
		slog.WarnContext(ctx, "could not parse pylint output", "err", err)
		return &linterReport{raw: strings.TrimSpace(res.Stdout)}, nil
	}
	rep := &linterReport{}
	for _, m := range msgs {
		rep.issues = append(rep.issues, describe(m))
	}
	return rep, nil
}

// runLinters runs flake8 and pylint concurrently.
func runLinters(ctx context.Context, cfg *config.Config, flakeTargets, pylintTargets []string, describe func(PylintMessage) string) (flake, pylint *linterReport, err error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		flake, err = runFlake8(ctx, cfg, flakeTargets)
		return err
	})
	eg.Go(func() error {
		var err error
		pylint, err = runPylint(ctx, cfg, pylintTargets, describe)
		return err
	})
	err = eg.Wait()
	return flake, pylint, err
}

// writeIssues renders at most limit issues as "- issue" lines.
func writeIssues(b *strings.Builder, issues []string, limit int) {
	for i, issue := range issues {
		if limit > 0 && i == limit {
			fmt.Fprintf(b, "... and %d more issues\n", len(issues)-limit)
			break
		}
		fmt.Fprintf(b, "- %s\n", issue)
	}
}

// LintCode runs flake8 and pylint over path, or the whole repository when empty.
func LintCode(ctx context.Context, cfg *config.Config, path string) (string, error) {
	target := "."
	if path != "" {
		abs, rel, err := fileops.Resolve(cfg, path)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			return fmt.Sprintf("Path '%s' not found", path), nil
		}
		target = rel
	}
	pylintTargets := []string{target}
	if target == "." {
		files, err := fileops.Find(cfg, "", "*.py")
		if err != nil {
			return "", err
		}
		pylintTargets = files
	}
	slog.InfoContext(ctx, "linting", "target", target)

	flake, pylint, err := runLinters(ctx, cfg, []string{target}, pylintTargets, func(m PylintMessage) string {
		return fmt.Sprintf("%s:%d: %s (%s)", m.Path, m.Line, m.Message, m.Symbol)
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Linting results:\n\n")
	if flake == nil && pylint == nil {
		b.WriteString("No linters available. Install flake8 or pylint.\n")
		return b.String(), nil
	}
	if flake != nil {
		fmt.Fprintf(&b, "Flake8: Found %d issues\n", len(flake.issues))
		writeIssues(&b, flake.issues, cfg.ListLimit)
		b.WriteString("\n")
	}
	if pylint != nil {
		if pylint.raw != "" {
			fmt.Fprintf(&b, "Pylint output:\n%s\n", pylint.raw)
		} else {
			fmt.Fprintf(&b, "Pylint: Found %d issues\n", len(pylint.issues))
			writeIssues(&b, pylint.issues, cfg.ListLimit)
		}
	}
	return b.String(), nil
}

// AnalyzeCode reports pylint and flake8 findings for one file.
func AnalyzeCode(ctx context.Context, cfg *config.Config, path string) (string, error) {
	abs, rel, err := fileops.Resolve(cfg, path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return fmt.Sprintf("File '%s' not found", path), nil
	}
	slog.InfoContext(ctx, "analyzing", "path", rel)

	flake, pylint, err := runLinters(ctx, cfg, []string{rel}, []string{rel}, func(m PylintMessage) string {
		return fmt.Sprintf("Line %d: %s", m.Line, m.Message)
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis results for %s:\n\n", rel)
	if flake == nil && pylint == nil {
		b.WriteString("No analyzers available. Install pylint or flake8.\n")
		return b.String(), nil
	}
	if pylint != nil {
		if pylint.raw != "" {
			fmt.Fprintf(&b, "Pylint output: %s\n", pylint.raw)
		} else {
			fmt.Fprintf(&b, "Pylint found %d issues\n", len(pylint.issues))
			writeIssues(&b, pylint.issues, cfg.ListLimit)
		}
	}
	if flake != nil {
		fmt.Fprintf(&b, "\nFlake8 found %d issues\n", len(flake.issues))
		writeIssues(&b, flake.issues, cfg.ListLimit)
	}
	return b.String(), nil
}
