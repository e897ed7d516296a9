package agenttool

import (
	"context"
	"time"

	"gitagent.dev/toolargs"
)

// binding ties a ToolID to its parameters and the one operation it calls.
type binding struct {
	description string
	spec        toolargs.Spec
	// required parameters must be present and non-blank before run is called.
	required []string
	run      func(ctx context.Context, ops Operations, a toolargs.Args) (string, error)
}

var (
	filePathAlias = map[string]string{"path": "file_path", "file": "file_path", "filename": "file_path"}
	branchAlias   = map[string]string{"branch": "branch_name", "name": "branch_name"}
)

// paramDocs describe parameters in generated input schemas.
var paramDocs = map[string]string{
	"file_path":         "Path of the file, relative to the repository root.",
	"new_content":       "Complete new content of the file.",
	"directory_path":    "Directory to list, relative to the repository root. Empty for the whole repository.",
	"commit_message":    "Commit message. Defaults to \"Update code\".",
	"branch_name":       "Name of the branch.",
	"pop":               "Pop the most recent stash instead of stashing.",
	"message":           "Message for the stash entry.",
	"branch":            "Branch to open the pull request from.",
	"title":             "Pull request title.",
	"description":       "Pull request body.",
	"command":           "Shell command to run in the repository root.",
	"timeout":           "Timeout in seconds. Defaults to 60.",
	"query":             "Literal text to search for.",
	"file_pattern":      "Glob restricting the searched file names, e.g. *.py.",
	"test_path":         "Test file or directory. Empty runs every test.",
	"requirements_file": "Requirements file. Defaults to requirements.txt.",
	"path":              "File or directory to lint. Empty lints the whole repository.",
}

var bindings = map[ToolID]binding{
	ToolModifyCode: {
		description: "Creates or modifies a file in the repository. Inputs: file_path (str), new_content (str).",
		spec: toolargs.Spec{
			Params:     []string{"file_path", toolargs.ContentKey},
			Positional: "file_path",
			Aliases:    map[string]string{"path": "file_path", "file": "file_path", "content": toolargs.ContentKey},
		},
		required: []string{"file_path", toolargs.ContentKey},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.CreateFile(ctx, a.String("file_path"), a.String(toolargs.ContentKey))
		},
	},
	ToolDeleteFile: {
		description: "Deletes a file from the repository. Input: file_path (str).",
		spec:        toolargs.Spec{Params: []string{"file_path"}, Positional: "file_path", Aliases: filePathAlias},
		required:    []string{"file_path"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.DeleteFile(ctx, a.String("file_path"))
		},
	},
	ToolListFiles: {
		description: "Lists files in the repository or a specific directory. Input (optional): directory_path (str).",
		spec: toolargs.Spec{
			Params:     []string{"directory_path"},
			Positional: "directory_path",
			Aliases:    map[string]string{"directory": "directory_path", "dir": "directory_path", "path": "directory_path"},
		},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.ListFiles(ctx, a.String("directory_path"))
		},
	},
	ToolReadFile: {
		description: "Reads the content of a file. Input: file_path (str).",
		spec:        toolargs.Spec{Params: []string{"file_path"}, Positional: "file_path", Aliases: filePathAlias},
		required:    []string{"file_path"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.ReadFile(ctx, a.String("file_path"))
		},
	},
	ToolCommitAndPush: {
		description: "Commits and pushes changes to GitHub. Inputs: file_path (str), commit_message (str, optional).",
		spec: toolargs.Spec{
			Params:     []string{"file_path", "commit_message"},
			Positional: "file_path",
			Defaults:   map[string]any{"commit_message": "Update code"},
			Aliases:    map[string]string{"path": "file_path", "file": "file_path", "message": "commit_message"},
		},
		required: []string{"file_path"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.CommitAndPush(ctx, a.String("file_path"), a.String("commit_message"))
		},
	},
	ToolCreateBranch: {
		description: "Creates a new branch and switches to it. Input: branch_name (str).",
		spec:        toolargs.Spec{Params: []string{"branch_name"}, Positional: "branch_name", Aliases: branchAlias},
		required:    []string{"branch_name"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.CreateBranch(ctx, a.String("branch_name"))
		},
	},
	ToolCheckoutBranch: {
		description: "Switches to an existing branch, tracking origin when it only exists there. Input: branch_name (str).",
		spec:        toolargs.Spec{Params: []string{"branch_name"}, Positional: "branch_name", Aliases: branchAlias},
		required:    []string{"branch_name"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.CheckoutBranch(ctx, a.String("branch_name"))
		},
	},
	ToolGetRepoStatus: {
		description: "Gets the status of the repository including current branch, changes, and last commit.",
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.RepoStatus(ctx)
		},
	},
	ToolGenerateDiff: {
		description: "Generates a diff for current changes. Input (optional): file_path (str) to limit diff to a specific file.",
		spec:        toolargs.Spec{Params: []string{"file_path"}, Positional: "file_path", Aliases: filePathAlias},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.Diff(ctx, a.String("file_path"))
		},
	},
	ToolStashChanges: {
		description: "Stashes or pops stashed changes. Inputs: pop (bool, default=false), message (str, optional).",
		spec: toolargs.Spec{
			Params:     []string{"pop", "message"},
			Positional: "message",
			Bools:      []string{"pop"},
			Flags:      map[string]string{"pop": "pop"},
		},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.Stash(ctx, a.Bool("pop"), a.String("message"))
		},
	},
	ToolCreatePullRequest: {
		description: "Creates a pull request. Inputs: branch (str), title (str, optional), description (str, optional).",
		spec: toolargs.Spec{
			Params:     []string{"branch", "title", "description"},
			Positional: "branch",
			Defaults:   map[string]any{"title": "New Pull Request"},
			Aliases:    map[string]string{"branch_name": "branch", "head": "branch", "body": "description"},
		},
		required: []string{"branch"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.CreatePullRequest(ctx, a.String("branch"), a.String("title"), a.String("description"))
		},
	},
	ToolRunCommand: {
		description: "Runs a shell command in the repository. Input: command (str), timeout (int, optional, default=60).",
		spec: toolargs.Spec{
			Params:     []string{"command", "timeout"},
			Positional: "command",
			Aliases:    map[string]string{"cmd": "command"},
		},
		required: []string{"command"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.RunCommand(ctx, a.String("command"), time.Duration(a.Int("timeout", 0))*time.Second)
		},
	},
	ToolSearchCode: {
		description: "Searches for code matching a query. Inputs: query (str), file_pattern (str, optional, default='*').",
		spec: toolargs.Spec{
			Params:     []string{"query", "file_pattern"},
			Positional: "query",
			Defaults:   map[string]any{"file_pattern": "*"},
			Aliases:    map[string]string{"pattern": "file_pattern", "glob": "file_pattern"},
		},
		required: []string{"query"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.SearchCode(ctx, a.String("query"), a.String("file_pattern"))
		},
	},
	ToolRunTests: {
		description: "Runs tests in the repository. Input (optional): test_path (str) to specify which tests to run.",
		spec: toolargs.Spec{
			Params:     []string{"test_path"},
			Positional: "test_path",
			Aliases:    map[string]string{"path": "test_path"},
		},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.RunTests(ctx, a.String("test_path"))
		},
	},
	ToolInstallDependencies: {
		description: "Installs dependencies from a requirements file. Input (optional): requirements_file (str, default='requirements.txt').",
		spec: toolargs.Spec{
			Params:     []string{"requirements_file"},
			Positional: "requirements_file",
			Defaults:   map[string]any{"requirements_file": "requirements.txt"},
			Aliases:    map[string]string{"file": "requirements_file", "path": "requirements_file"},
		},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.InstallDependencies(ctx, a.String("requirements_file"))
		},
	},
	ToolAnalyzeCode: {
		description: "Analyzes code for issues and complexity. Input: file_path (str).",
		spec:        toolargs.Spec{Params: []string{"file_path"}, Positional: "file_path", Aliases: filePathAlias},
		required:    []string{"file_path"},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.AnalyzeCode(ctx, a.String("file_path"))
		},
	},
	ToolLintCode: {
		description: "Runs linting across the repository or a specific path. Input (optional): path (str).",
		spec: toolargs.Spec{
			Params:     []string{"path"},
			Positional: "path",
			Aliases:    map[string]string{"directory_path": "path", "file_path": "path"},
		},
		run: func(ctx context.Context, ops Operations, a toolargs.Args) (string, error) {
			return ops.LintCode(ctx, a.String("path"))
		},
	},
}
