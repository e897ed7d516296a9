package git_tools

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"gitagent.dev/config"
)

// FileChange is one entry of `git status --porcelain`.
type FileChange struct {
	Type string `json:"type"` // modified, added, deleted, untracked, renamed or the raw code
	Path string `json:"path"`
}

// Commit describes the last commit of HEAD.
type Commit struct {
	Hash    string `json:"hash"` // abbreviated to 7 characters
	Author  string `json:"author"`
	Date    string `json:"date"` // 2006-01-02 15:04:05 in the author's zone
	Message string `json:"message"`
}

type RepoStatus struct {
	CurrentBranch string       `json:"current_branch"`
	Branches      []string     `json:"branches"`
	Changes       []FileChange `json:"status"`
	LastCommit    *Commit      `json:"last_commit,omitempty"`
}

func (s *RepoStatus) HasChanges() bool {
	return len(s.Changes) > 0
}

// String renders the status report shown to the model.
func (s *RepoStatus) String() string {
	var b strings.Builder
	b.WriteString("Repository Status:\n\n")
	fmt.Fprintf(&b, "Current branch: %s\n", s.CurrentBranch)
	fmt.Fprintf(&b, "Available branches: %s\n\n", strings.Join(s.Branches, ", "))
	if c := s.LastCommit; c != nil {
		b.WriteString("Last commit:\n")
		fmt.Fprintf(&b, "  Hash: %s\n", c.Hash)
		fmt.Fprintf(&b, "  Author: %s\n", c.Author)
		fmt.Fprintf(&b, "  Date: %s\n", c.Date)
		fmt.Fprintf(&b, "  Message: %s\n\n", c.Message)
	}
	if !s.HasChanges() {
		b.WriteString("Working tree clean\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Changes (%d files):\n", len(s.Changes))
	for _, c := range s.Changes {
		fmt.Fprintf(&b, "  %s: %s\n", c.Type, c.Path)
	}
	return b.String()
}

// Status collects the branch, working tree and last-commit state of the repository.
func Status(ctx context.Context, cfg *config.Config) (*RepoStatus, error) {
	root, err := RequireRepo(cfg)
	if err != nil {
		return nil, err
	}
	st := &RepoStatus{}
	if st.CurrentBranch, err = CurrentBranch(ctx, root); err != nil {
		return nil, err
	}
	if st.Branches, err = Branches(ctx, root); err != nil {
		return nil, err
	}
	out, err := run(ctx, root, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	st.Changes = parsePorcelain(out)
	if st.LastCommit, err = lastCommit(ctx, root); err != nil {
		return nil, err
	}
	return st, nil
}

func parsePorcelain(out string) []FileChange {
	var changes []FileChange
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		code := strings.TrimSpace(line[:2])
		changes = append(changes, FileChange{
			Type: changeType(code),
			Path: strings.TrimSpace(line[3:]),
		})
	}
	return changes
}

func changeType(code string) string {
	switch code {
	case "M":
		return "modified"
	case "A":
		return "added"
	case "D":
		return "deleted"
	case "??":
		return "untracked"
	case "R":
		return "renamed"
	}
	return code
}

// lastCommit returns nil for a repository without commits.
func lastCommit(ctx context.Context, repoDir string) (*Commit, error) {
	if _, err := run(ctx, repoDir, "rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		return nil, nil
	}
	out, err := run(ctx, repoDir, "log", "-1", "--date=format:%Y-%m-%d %H:%M:%S", "--pretty=format:%H%x00%an%x00%ad%x00%B")
	if err != nil {
		return nil, err
	}
	return parseCommit(out)
}

// parseCommit parses the null-separated fields hash, author, date, message.
func parseCommit(out string) (*Commit, error) {
	parts := strings.SplitN(out, "\x00", 4)
	if len(parts) != 4 {
		return nil, fmt.Errorf("unexpected git log output %q", out)
	}
	hash := parts[0]
	if len(hash) > 7 {
		hash = hash[:7]
	}
	return &Commit{
		Hash:    hash,
		Author:  parts[1],
		Date:    parts[2],
		Message: strings.TrimSpace(parts[3]),
	}, nil
}
