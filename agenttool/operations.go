package agenttool

import (
	"context"
	"time"

	"gitagent.dev/config"
	"gitagent.dev/devtools"
	"gitagent.dev/fileops"
	"gitagent.dev/git_tools"
)

// Operations are the side-effecting functions behind the tools.
// Each tool calls exactly one method.
type Operations interface {
	CreateFile(ctx context.Context, path, content string) (string, error)
	DeleteFile(ctx context.Context, path string) (string, error)
	ListFiles(ctx context.Context, dir string) (string, error)
	ReadFile(ctx context.Context, path string) (string, error)
	CommitAndPush(ctx context.Context, path, message string) (string, error)
	CreateBranch(ctx context.Context, name string) (string, error)
	CheckoutBranch(ctx context.Context, name string) (string, error)
	RepoStatus(ctx context.Context) (string, error)
	Diff(ctx context.Context, path string) (string, error)
	Stash(ctx context.Context, pop bool, message string) (string, error)
	CreatePullRequest(ctx context.Context, branch, title, description string) (string, error)
	RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error)
	SearchCode(ctx context.Context, query, pattern string) (string, error)
	RunTests(ctx context.Context, testPath string) (string, error)
	InstallDependencies(ctx context.Context, requirementsFile string) (string, error)
	AnalyzeCode(ctx context.Context, path string) (string, error)
	LintCode(ctx context.Context, path string) (string, error)
}

// Local runs the operations against the working tree described by Config.
type Local struct {
	Config *config.Config
}

var _ Operations = (*Local)(nil)

func NewLocal(cfg *config.Config) *Local {
	return &Local{Config: cfg}
}

func (l *Local) CreateFile(ctx context.Context, path, content string) (string, error) {
	return fileops.CreateFile(ctx, l.Config, path, content)
}

func (l *Local) DeleteFile(ctx context.Context, path string) (string, error) {
	return fileops.DeleteFile(ctx, l.Config, path)
}

func (l *Local) ListFiles(ctx context.Context, dir string) (string, error) {
	return fileops.ListFiles(ctx, l.Config, dir)
}

func (l *Local) ReadFile(ctx context.Context, path string) (string, error) {
	return fileops.ReadFile(ctx, l.Config, path)
}

func (l *Local) CommitAndPush(ctx context.Context, path, message string) (string, error) {
	return git_tools.CommitAndPush(ctx, l.Config, path, message)
}

func (l *Local) CreateBranch(ctx context.Context, name string) (string, error) {
	return git_tools.CreateBranch(ctx, l.Config, name)
}

func (l *Local) CheckoutBranch(ctx context.Context, name string) (string, error) {
	return git_tools.CheckoutBranch(ctx, l.Config, name)
}

func (l *Local) RepoStatus(ctx context.Context) (string, error) {
	st, err := git_tools.Status(ctx, l.Config)
	if err != nil {
		return "", err
	}
	return st.String(), nil
}

func (l *Local) Diff(ctx context.Context, path string) (string, error) {
	return git_tools.Diff(ctx, l.Config, path)
}

func (l *Local) Stash(ctx context.Context, pop bool, message string) (string, error) {
	return git_tools.Stash(ctx, l.Config, pop, message)
}

func (l *Local) CreatePullRequest(ctx context.Context, branch, title, description string) (string, error) {
	return devtools.CreatePullRequest(ctx, l.Config, branch, title, description)
}

func (l *Local) RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	return devtools.RunCommand(ctx, l.Config, command, timeout)
}

func (l *Local) SearchCode(ctx context.Context, query, pattern string) (string, error) {
	return devtools.SearchCode(ctx, l.Config, query, pattern)
}

func (l *Local) RunTests(ctx context.Context, testPath string) (string, error) {
	return devtools.RunTests(ctx, l.Config, testPath)
}

func (l *Local) InstallDependencies(ctx context.Context, requirementsFile string) (string, error) {
	return devtools.InstallDependencies(ctx, l.Config, requirementsFile)
}

func (l *Local) AnalyzeCode(ctx context.Context, path string) (string, error) {
	return devtools.AnalyzeCode(ctx, l.Config, path)
}

func (l *Local) LintCode(ctx context.Context, path string) (string, error) {
	return devtools.LintCode(ctx, l.Config, path)
}
