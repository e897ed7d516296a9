// Package fileops implements the file operations of the tool surface:
// create, delete, list and read files inside the working tree.
//
// Every operation returns a status string meant for the model. Conditions the
// model can act on (a missing file, an empty directory) are statuses, not errors.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"gitagent.dev/config"
)

// CreateFile writes content to path, creating parent directories.
// An existing file is overwritten.
func CreateFile(ctx context.Context, cfg *config.Config, path, content string) (string, error) {
	abs, rel, err := Resolve(cfg, path)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", fmt.Errorf("%q is not a file path", path)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}
	old, err := os.ReadFile(abs)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create parent directories for %s: %w", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	added, removed := ChangeStats(string(old), content)
	slog.InfoContext(ctx, "wrote file",
		"path", rel,
		"bytes", len(content),
		"lines_added", added,
		"lines_removed", removed,
	)
	status := fmt.Sprintf("File %s created successfully.", rel)
	if existed {
		status += fmt.Sprintf("\nReplaced existing file: %d lines added, %d lines removed.", added, removed)
	}
	return status, nil
}

// DeleteFile removes path. A missing file is reported, not an error.
func DeleteFile(ctx context.Context, cfg *config.Config, path string) (string, error) {
	abs, rel, err := Resolve(cfg, path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("File %s does not exist.", rel), nil
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}
	if err := os.Remove(abs); err != nil {
		return "", fmt.Errorf("delete %s: %w", rel, err)
	}
	slog.InfoContext(ctx, "deleted file", "path", rel)
	return fmt.Sprintf("File %s deleted successfully.", rel), nil
}

// ListFiles lists every file under dir (the whole repository when dir is empty)
// as "path (size)", one per line, sorted.
func ListFiles(ctx context.Context, cfg *config.Config, dir string) (string, error) {
	lines, err := listLines(ctx, cfg, dir)
	if err != nil {
		var st statusError
		if errors.As(err, &st) {
			return string(st), nil
		}
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// Summary lists at most cfg.ListLimit files of the repository,
// followed by a count of the remainder.
func Summary(ctx context.Context, cfg *config.Config) (string, error) {
	lines, err := listLines(ctx, cfg, "")
	if err != nil {
		var st statusError
		if errors.As(err, &st) {
			return string(st), nil
		}
		return "", err
	}
	return "Files in repository:\n" + Cap(lines, cfg.ListLimit, "files"), nil
}

// Cap renders at most limit items, one per line, and a "...and N more <noun>"
// trailer for the rest.
func Cap(items []string, limit int, noun string) string {
	if limit <= 0 || len(items) <= limit {
		return strings.Join(items, "\n")
	}
	return strings.Join(items[:limit], "\n") + fmt.Sprintf("\n...and %d more %s", len(items)-limit, noun)
}

// statusError carries a listing outcome that is reported to the model verbatim.
type statusError string

func (s statusError) Error() string { return string(s) }

func listLines(ctx context.Context, cfg *config.Config, dir string) ([]string, error) {
	shown := CleanPath(cfg, dir)
	abs, _, err := Resolve(cfg, dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, statusError(fmt.Sprintf("Directory %s does not exist.", shown))
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", shown, err)
	}

	var lines []string
	err = walkFiles(cfg.Root(), abs, func(rel string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", rel, FormatSize(info.Size())))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", shown, err)
	}
	if len(lines) == 0 {
		if shown == "" {
			shown = "repository"
		}
		return nil, statusError(fmt.Sprintf("No files found in %s.", shown))
	}
	slices.Sort(lines)
	return lines, nil
}

// ReadFile returns the content of path. Files larger than cfg.MaxFileSize
// yield a preview of min(cfg.PreviewLimit, size/10) characters and a notice.
func ReadFile(ctx context.Context, cfg *config.Config, path string) (string, error) {
	abs, rel, err := Resolve(cfg, path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("File %s does not exist.", rel), nil
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}

	size := info.Size()
	if size <= cfg.MaxFileSize {
		b, err := os.ReadFile(abs)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", rel, err)
		}
		return string(b), nil
	}

	n := min(int64(cfg.PreviewLimit), size/10)
	preview, err := readPreview(abs, int(n))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	slog.DebugContext(ctx, "file too large, returning preview", "path", rel, "size", size, "preview_chars", n)
	return fmt.Sprintf("File %s is too large (%d bytes) to process in full. "+
		"Here's a preview of the first %d characters:\n\n%s\n\n...\n\n"+
		"Please use a more specific command to work with sections of this file.",
		rel, size, n, preview), nil
}

// readPreview reads the first n characters of the file at path.
func readPreview(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, n*utf8.UTFMax)
	m, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return firstRunes(buf[:m], n), nil
}

func firstRunes(b []byte, n int) string {
	i := 0
	for count := 0; count < n && i < len(b); count++ {
		_, size := utf8.DecodeRune(b[i:])
		i += size
	}
	return string(b[:i])
}

// FormatSize renders a byte count the way listings show it:
// "500 bytes", "2.0 KB", "2.0 MB".
func FormatSize(n int64) string {
	switch {
	case n > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n > 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
