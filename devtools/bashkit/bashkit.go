// Package bashkit inspects shell commands before RunCommand executes them.
package bashkit

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

var checks = []func(*syntax.CallExpr) error{
	noGitConfigUsernameEmailChanges,
	noBlindGitAdd,
	noForcePush,
}

// Check inspects script and returns an error if it ought not be executed.
// Check DOES NOT PROVIDE SECURITY against malicious actors.
// It catches straightforward mistakes in which a model does things
// the dedicated tools exist for, or that rewrite shared history.
func Check(script string) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(script), "")
	if err != nil {
		// Execution will fail, and bash reports the problem better.
		return nil
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		if err != nil {
			return false
		}
		callExpr, ok := node.(*syntax.CallExpr)
		if !ok {
			return true
		}
		for _, check := range checks {
			if err = check(callExpr); err != nil {
				return false
			}
		}
		return true
	})
	return err
}

// gitSubcommand returns the index of sub among the arguments of a git call, or -1.
func gitSubcommand(cmd *syntax.CallExpr, sub string) int {
	if len(cmd.Args) < 2 || cmd.Args[0].Lit() != "git" {
		return -1
	}
	for i, arg := range cmd.Args[1:] {
		if arg.Lit() == sub {
			return i + 1
		}
	}
	return -1
}

func noGitConfigUsernameEmailChanges(cmd *syntax.CallExpr) error {
	configIndex := gitSubcommand(cmd, "config")
	if configIndex < 0 {
		return nil
	}
	for i := configIndex + 1; i < len(cmd.Args); i++ {
		lit := cmd.Args[i].Lit()
		// user.name/user.email followed by a value is a write
		if (lit == "user.name" || lit == "user.email") && i < len(cmd.Args)-1 {
			return fmt.Errorf("permission denied: changing git config username/email is not allowed")
		}
	}
	return nil
}

// noBlindGitAdd rejects 'git add -A', 'git add .', 'git add --all' and 'git add *'.
// CommitAndPush stages exactly one file.
func noBlindGitAdd(cmd *syntax.CallExpr) error {
	addIndex := gitSubcommand(cmd, "add")
	if addIndex < 0 {
		return nil
	}
	for _, arg := range cmd.Args[addIndex+1:] {
		switch arg.Lit() {
		case "-A", "--all", ".", "*":
			return fmt.Errorf("permission denied: blind git add commands (git add -A, git add ., git add --all, git add *) are not allowed, specify files explicitly")
		}
	}
	return nil
}

func noForcePush(cmd *syntax.CallExpr) error {
	pushIndex := gitSubcommand(cmd, "push")
	if pushIndex < 0 {
		return nil
	}
	for _, arg := range cmd.Args[pushIndex+1:] {
		lit := arg.Lit()
		if lit == "-f" || lit == "--force" || strings.HasPrefix(lit, "--force-with-lease") || strings.HasPrefix(lit, "+") {
			return fmt.Errorf("permission denied: force pushes are not allowed")
		}
	}
	return nil
}

// ExtractCommands returns the external command names script invokes:
// no paths, no shell builtins, no variable assignments, no duplicates.
//
//	"ls -la && echo done"      → ["ls"]
//	"./deploy.sh && curl x"    → ["curl"]
//	"pytest -q | tee out.txt"  → ["pytest", "tee"]
func ExtractCommands(script string) ([]string, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(script), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var commands []string
	seen := make(map[string]bool)
	syntax.Walk(file, func(node syntax.Node) bool {
		callExpr, ok := node.(*syntax.CallExpr)
		if !ok || len(callExpr.Args) == 0 {
			return true
		}
		name := callExpr.Args[0].Lit()
		if name == "" || strings.ContainsAny(name, "=/") || interp.IsBuiltin(name) {
			return true
		}
		if !seen[name] {
			seen[name] = true
			commands = append(commands, name)
		}
		return true
	})
	return commands, nil
}
