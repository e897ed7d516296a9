// Package probe checks which external collaborators (git, gh, ripgrep,
// the python test and lint tools) are installed and at what version.
package probe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"gitagent.dev/runner"
)

// Tool describes one collaborator executable.
type Tool struct {
	Name        string
	VersionArgs []string
	// Min is the lowest acceptable version. Empty means any.
	Min string
	// Required tools fail the probe when missing or too old.
	Required bool
	Purpose  string
}

// Collaborators are the executables the tool surface drives.
var Collaborators = []Tool{
	// stash push needs 2.13
	{Name: "git", VersionArgs: []string{"--version"}, Min: "2.13.0", Required: true, Purpose: "version control"},
	{Name: "gh", VersionArgs: []string{"--version"}, Purpose: "CreatePullRequest"},
	{Name: "rg", VersionArgs: []string{"--version"}, Purpose: "SearchCode (falls back to grep)"},
	{Name: "pytest", VersionArgs: []string{"--version"}, Purpose: "RunTests (falls back to unittest)"},
	{Name: "flake8", VersionArgs: []string{"--version"}, Purpose: "LintCode, AnalyzeCode"},
	{Name: "pylint", VersionArgs: []string{"--version"}, Purpose: "LintCode, AnalyzeCode"},
	{Name: "pip", VersionArgs: []string{"--version"}, Purpose: "InstallDependencies"},
}

type Report struct {
	Tool    Tool
	Found   bool
	Version *semver.Version
	Err     error
}

func (r Report) String() string {
	switch {
	case !r.Found:
		return fmt.Sprintf("%-7s missing (%s)", r.Tool.Name, r.Tool.Purpose)
	case r.Err != nil:
		return fmt.Sprintf("%-7s %v", r.Tool.Name, r.Err)
	case r.Version == nil:
		return fmt.Sprintf("%-7s ok", r.Tool.Name)
	default:
		return fmt.Sprintf("%-7s %s", r.Tool.Name, r.Version)
	}
}

var versionRE = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// ParseVersion finds the first dotted version number in out.
func ParseVersion(out string) (*semver.Version, error) {
	m := versionRE.FindString(out)
	if m == "" {
		return nil, fmt.Errorf("no version in %q", strings.TrimSpace(out))
	}
	return semver.NewVersion(m)
}

// Check probes tool.
func Check(ctx context.Context, tool Tool) Report {
	rep := Report{Tool: tool, Found: runner.Available(tool.Name)}
	if !rep.Found {
		if tool.Required {
			rep.Err = fmt.Errorf("cannot find `%s` binary", tool.Name)
		}
		return rep
	}
	res, err := runner.Run(ctx, runner.Command{
		Args:    append([]string{tool.Name}, tool.VersionArgs...),
		Timeout: 10 * time.Second,
	})
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("exit status %d", res.ExitCode)
	}
	if err != nil {
		rep.Err = fmt.Errorf("%s version check failed: %w\n%s", tool.Name, err, res.Combined())
		return rep
	}
	v, err := ParseVersion(res.Stdout + res.Stderr)
	if err != nil {
		// Present but unparseable is good enough unless a minimum applies.
		if tool.Min != "" {
			rep.Err = err
		}
		return rep
	}
	rep.Version = v
	if tool.Min != "" {
		c, err := semver.NewConstraint(">= " + tool.Min)
		if err != nil {
			rep.Err = err
		} else if !c.Check(v) {
			rep.Err = fmt.Errorf("%s %s is older than required %s", tool.Name, v, tool.Min)
		}
	}
	return rep
}

// All probes tools concurrently. Reports keep the order of tools. The error
// joins the failures of required tools only.
func All(ctx context.Context, tools []Tool) ([]Report, error) {
	reports := make([]Report, len(tools))
	var (
		mu   sync.Mutex
		errs []error
	)
	eg := errgroup.Group{}
	eg.SetLimit(len(tools) + 1)
	for i, tool := range tools {
		eg.Go(func() error {
			rep := Check(ctx, tool)
			reports[i] = rep
			if rep.Err != nil && tool.Required {
				mu.Lock()
				errs = append(errs, rep.Err)
				mu.Unlock()
			}
			return nil
		})
	}
	eg.Wait()
	return reports, errors.Join(errs...)
}
