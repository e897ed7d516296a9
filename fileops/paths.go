package fileops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gitagent.dev/config"
)

// ErrOutsideRepo is returned for paths that resolve outside the repository root.
var ErrOutsideRepo = errors.New("path is outside the repository")

// skipDirs are version-control metadata directories excluded from listings.
var skipDirs = map[string]bool{".git": true, ".hg": true, ".svn": true}

// CleanPath normalizes a path as supplied by the model: surrounding
// whitespace and quotes are removed, as is a leading copy of the
// repository directory name.
func CleanPath(cfg *config.Config, p string) string {
	p = strings.TrimSpace(p)
	if len(p) >= 2 && (p[0] == '"' || p[0] == '\'') && p[len(p)-1] == p[0] {
		p = strings.TrimSpace(p[1 : len(p)-1])
	}
	p = filepath.ToSlash(p)
	base := filepath.Base(filepath.Clean(cfg.RepoPath))
	if base != "." && base != "/" {
		p = strings.TrimPrefix(p, base+"/")
	}
	p = strings.TrimPrefix(p, "./")
	return p
}

// Resolve maps p to an absolute path inside the repository.
// It returns the cleaned relative path alongside.
func Resolve(cfg *config.Config, p string) (abs, rel string, err error) {
	root := cfg.Root()
	rel = CleanPath(cfg, p)
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(root, rel)
		if err != nil {
			return "", "", fmt.Errorf("%q: %w", p, ErrOutsideRepo)
		}
		rel = r
	}
	if rel == "" {
		rel = "."
	}
	rel = filepath.Clean(rel)
	if !filepath.IsLocal(rel) && rel != "." {
		return "", "", fmt.Errorf("%q: %w", p, ErrOutsideRepo)
	}
	return filepath.Join(root, rel), filepath.ToSlash(rel), nil
}

// walkFiles calls fn for every regular file under dir, skipping
// version-control metadata. Paths passed to fn are relative to root.
func walkFiles(root, dir string, fn func(rel string, info fs.FileInfo) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info)
	})
}

// Find returns the repository-relative paths of files under dir whose base
// name matches pattern, sorted. Hidden directories are skipped.
func Find(cfg *config.Config, dir, pattern string) ([]string, error) {
	abs, _, err := Resolve(cfg, dir)
	if err != nil {
		return nil, err
	}
	var found []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		rel, err := filepath.Rel(cfg.Root(), path)
		if err != nil {
			return err
		}
		found = append(found, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find %s in %s: %w", pattern, dir, err)
	}
	slices.Sort(found)
	return found, nil
}
