package fileops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"gitagent.dev/config"
)

// Node is one entry of the repository file tree.
type Node struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"` // "file" or "directory"
	Path     string  `json:"path"`
	Size     int64   `json:"size,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Tree returns the nested file tree of the repository, directories first,
// skipping version-control metadata.
func Tree(ctx context.Context, cfg *config.Config) (*Node, error) {
	root := cfg.Root()
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("repository %s: %w", cfg.RepoPath, err)
	}
	n := &Node{Name: filepath.Base(root), Type: "directory", Path: "."}
	if err := fillTree(ctx, root, "", n); err != nil {
		return nil, err
	}
	return n, nil
}

func fillTree(ctx context.Context, root, rel string, parent *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(filepath.Join(root, rel))
	if err != nil {
		return fmt.Errorf("read directory %s: %w", rel, err)
	}
	for _, e := range entries {
		if e.IsDir() && skipDirs[e.Name()] {
			continue
		}
		p := filepath.ToSlash(filepath.Join(rel, e.Name()))
		child := &Node{Name: e.Name(), Path: p}
		if e.IsDir() {
			child.Type = "directory"
			if err := fillTree(ctx, root, p, child); err != nil {
				return err
			}
		} else {
			child.Type = "file"
			if info, err := e.Info(); err == nil {
				child.Size = info.Size()
			}
		}
		parent.Children = append(parent.Children, child)
	}
	slices.SortStableFunc(parent.Children, func(a, b *Node) int {
		if a.Type != b.Type {
			if a.Type == "directory" {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return nil
}

// ChangeStats counts the lines added and removed going from old to new.
func ChangeStats(old, new string) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
