package devtools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gitagent.dev/config"
	"gitagent.dev/fileops"
	"gitagent.dev/runner"
)

// firstAvailable returns the first of names on PATH, or "".
func firstAvailable(names ...string) string {
	for _, n := range names {
		if runner.Available(n) {
			return n
		}
	}
	return ""
}

// testCommand picks pytest when it answers --version, else unittest.
func testCommand(ctx context.Context, cfg *config.Config, testPath string) ([]string, error) {
	if runner.Available("pytest") {
		res, err := runner.Run(ctx, runner.Command{Args: []string{"pytest", "--version"}, Dir: cfg.Root(), Timeout: cfg.CommandTimeout})
		if err == nil && res.ExitCode == 0 {
			if testPath != "" {
				return []string{"pytest", testPath, "-v"}, nil
			}
			return []string{"pytest", "-v"}, nil
		}
	}
	python := firstAvailable("python3", "python")
	if python == "" {
		return nil, errors.New("no test runner available: install pytest or python")
	}
	switch {
	case testPath == "":
		return []string{python, "-m", "unittest", "discover"}, nil
	case strings.HasSuffix(testPath, ".py"):
		return []string{python, "-m", "unittest", testPath}, nil
	default:
		return []string{python, "-m", "unittest", "discover", testPath}, nil
	}
}

// RunTests runs the tests under testPath, or the whole suite when empty.
// A failing or timed out run is a status, not an error.
func RunTests(ctx context.Context, cfg *config.Config, testPath string) (string, error) {
	if testPath != "" {
		_, rel, err := fileops.Resolve(cfg, testPath)
		if err != nil {
			return "", err
		}
		testPath = rel
	}
	args, err := testCommand(ctx, cfg, testPath)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "running tests", "cmd", strings.Join(args, " "))

	res, err := runner.Run(ctx, runner.Command{Args: args, Dir: cfg.Root(), Timeout: cfg.TestTimeout})
	if res.TimedOut {
		return fmt.Sprintf("Tests failed:\n%s\nCommand timed out after %s", res.Stdout, cfg.TestTimeout), nil
	}
	if err != nil {
		return "", err
	}
	if res.ExitCode == 0 {
		// unittest reports on stderr
		return "Tests passed:\n" + res.Combined(), nil
	}
	return fmt.Sprintf("Tests failed:\n%s\n%s", res.Stdout, res.Stderr), nil
}

// InstallDependencies runs pip install -r on the requirements file.
func InstallDependencies(ctx context.Context, cfg *config.Config, requirementsFile string) (string, error) {
	if requirementsFile == "" {
		requirementsFile = "requirements.txt"
	}
	abs, rel, err := fileops.Resolve(cfg, requirementsFile)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("Requirements file '%s' not found", requirementsFile), nil
	}
	pip := firstAvailable("pip", "pip3")
	if pip == "" {
		return "", errors.New("pip is not installed")
	}
	slog.InfoContext(ctx, "installing dependencies", "file", rel, "pip", pip)

	res, err := runner.Run(ctx, runner.Command{
		Args:    []string{pip, "install", "-r", rel},
		Dir:     cfg.Root(),
		Timeout: cfg.InstallTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("error installing dependencies: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("error installing dependencies:\n%s", strings.TrimSpace(res.Stderr))
	}
	return "Dependencies installed successfully:\n" + res.Stdout, nil
}
