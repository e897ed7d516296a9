package fileops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gitagent.dev/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.RepoPath = filepath.Join(t.TempDir(), "local_repo")
	if err := os.MkdirAll(cfg.RepoPath, 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeFile(t *testing.T, cfg *config.Config, rel, content string) {
	t.Helper()
	p := filepath.Join(cfg.RepoPath, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 bytes"},
		{500, "500 bytes"},
		{1024, "1024 bytes"},
		{1536, "1.5 KB"},
		{2048, "2.0 KB"},
		{1024 * 1024, "1024.0 KB"},
		{2097152, "2.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateThenRead(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	status, err := CreateFile(ctx, cfg, "src/app.py", "line1\nline2")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if status != "File src/app.py created successfully." {
		t.Errorf("status = %q", status)
	}
	got, err := ReadFile(ctx, cfg, "src/app.py")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "line1\nline2" {
		t.Errorf("ReadFile = %q, want %q", got, "line1\nline2")
	}

	// Overwrites, never appends.
	status, err = CreateFile(ctx, cfg, "'src/app.py'", "line1\nshort")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if want := "File src/app.py created successfully.\nReplaced existing file: 1 lines added, 1 lines removed."; status != want {
		t.Errorf("overwrite status = %q, want %q", status, want)
	}
	got, _ = ReadFile(ctx, cfg, "src/app.py")
	if got != "line1\nshort" {
		t.Errorf("after overwrite ReadFile = %q, want %q", got, "line1\nshort")
	}
}

func TestReadFileMissing(t *testing.T) {
	cfg := testConfig(t)
	got, err := ReadFile(context.Background(), cfg, "nope.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "File nope.txt does not exist." {
		t.Errorf("ReadFile = %q", got)
	}
}

func TestReadFileThreshold(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.MaxFileSize = 100

	writeFile(t, cfg, "exact.txt", strings.Repeat("e", 100))
	got, err := ReadFile(ctx, cfg, "exact.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != strings.Repeat("e", 100) {
		t.Errorf("file at the threshold should be returned in full, got %d chars", len(got))
	}

	writeFile(t, cfg, "big.txt", strings.Repeat("x", 1000))
	got, err = ReadFile(ctx, cfg, "big.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := "File big.txt is too large (1000 bytes) to process in full. " +
		"Here's a preview of the first 100 characters:\n\n" + strings.Repeat("x", 100) +
		"\n\n...\n\nPlease use a more specific command to work with sections of this file."
	if got != want {
		t.Errorf("ReadFile large =\n%q\nwant\n%q", got, want)
	}

	// The preview is capped by PreviewLimit.
	cfg.PreviewLimit = 10
	got, _ = ReadFile(ctx, cfg, "big.txt")
	if !strings.Contains(got, "first 10 characters:\n\n"+strings.Repeat("x", 10)+"\n\n...") {
		t.Errorf("preview not capped: %q", got)
	}
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	got, err := DeleteFile(ctx, cfg, "ghost.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "File ghost.txt does not exist." {
		t.Errorf("DeleteFile missing = %q", got)
	}

	writeFile(t, cfg, "keep.txt", "k")
	writeFile(t, cfg, "gone.txt", "g")
	got, err = DeleteFile(ctx, cfg, "gone.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "File gone.txt deleted successfully." {
		t.Errorf("DeleteFile = %q", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.RepoPath, "gone.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("gone.txt still exists: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.RepoPath, "keep.txt")); err != nil {
		t.Errorf("keep.txt was touched: %v", err)
	}
}

func TestListFiles(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	got, err := ListFiles(ctx, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "No files found in repository." {
		t.Errorf("empty repository listing = %q", got)
	}

	got, _ = ListFiles(ctx, cfg, "missing")
	if got != "Directory missing does not exist." {
		t.Errorf("missing directory listing = %q", got)
	}

	if err := os.MkdirAll(filepath.Join(cfg.RepoPath, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, _ = ListFiles(ctx, cfg, "empty")
	if got != "No files found in empty." {
		t.Errorf("empty directory listing = %q", got)
	}

	writeFile(t, cfg, "a.txt", "hello")
	writeFile(t, cfg, "sub/b.txt", strings.Repeat("b", 2048))
	writeFile(t, cfg, ".git/HEAD", "ref: refs/heads/main\n")

	got, err = ListFiles(ctx, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	want := "a.txt (5 bytes)\nsub/b.txt (2.0 KB)"
	if got != want {
		t.Errorf("ListFiles = %q, want %q", got, want)
	}

	got, _ = ListFiles(ctx, cfg, "sub")
	if got != "sub/b.txt (2.0 KB)" {
		t.Errorf("ListFiles(sub) = %q", got)
	}
}

func TestSummaryCapsListing(t *testing.T) {
	cfg := testConfig(t)
	for i := range 12 {
		writeFile(t, cfg, fmt.Sprintf("f%02d.txt", i), "x")
	}
	got, err := Summary(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "Files in repository:\nf00.txt (1 bytes)") {
		t.Errorf("Summary prefix = %q", got)
	}
	if !strings.HasSuffix(got, "\n...and 2 more files") {
		t.Errorf("Summary suffix = %q", got)
	}
	if strings.Contains(got, "f10.txt") {
		t.Errorf("Summary shows more than 10 files: %q", got)
	}
}

func TestResolve(t *testing.T) {
	cfg := testConfig(t)

	_, rel, err := Resolve(cfg, "local_repo/src/a.py")
	if err != nil || rel != "src/a.py" {
		t.Errorf("Resolve repo-prefixed path = %q, %v", rel, err)
	}
	_, rel, err = Resolve(cfg, ` "./docs/x.md" `)
	if err != nil || rel != "docs/x.md" {
		t.Errorf("Resolve quoted path = %q, %v", rel, err)
	}
	abs, rel, err := Resolve(cfg, filepath.Join(cfg.Root(), "pkg", "y.go"))
	if err != nil || rel != "pkg/y.go" || abs != filepath.Join(cfg.Root(), "pkg", "y.go") {
		t.Errorf("Resolve absolute path = %q, %q, %v", abs, rel, err)
	}
	for _, p := range []string{"../outside.txt", "a/../../x", "/etc/passwd"} {
		if _, _, err := Resolve(cfg, p); !errors.Is(err, ErrOutsideRepo) {
			t.Errorf("Resolve(%q) error = %v, want ErrOutsideRepo", p, err)
		}
	}
}

func TestTree(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg, "z.txt", "z")
	writeFile(t, cfg, "dir/inner.txt", "inner")
	writeFile(t, cfg, ".git/config", "")

	root, err := Tree(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}
	dir, file := root.Children[0], root.Children[1]
	if dir.Type != "directory" || dir.Name != "dir" || len(dir.Children) != 1 {
		t.Errorf("first child = %+v, want directory dir", dir)
	}
	if dir.Children[0].Path != "dir/inner.txt" || dir.Children[0].Size != 5 {
		t.Errorf("inner file = %+v", dir.Children[0])
	}
	if file.Type != "file" || file.Name != "z.txt" {
		t.Errorf("second child = %+v, want file z.txt", file)
	}
}

func TestChangeStats(t *testing.T) {
	added, removed := ChangeStats("a\nb\n", "a\nc\nd\n")
	if added != 2 || removed != 1 {
		t.Errorf("ChangeStats = +%d -%d, want +2 -1", added, removed)
	}
	added, removed = ChangeStats("", "one\ntwo")
	if added != 2 || removed != 0 {
		t.Errorf("ChangeStats from empty = +%d -%d, want +2 -0", added, removed)
	}
}

func TestFind(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg, "b.py", "")
	writeFile(t, cfg, "pkg/a.py", "")
	writeFile(t, cfg, "pkg/readme.md", "")
	writeFile(t, cfg, ".venv/lib/site.py", "")

	got, err := Find(cfg, "", "*.py")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b.py", "pkg/a.py"}
	if !slices.Equal(got, want) {
		t.Errorf("Find = %v, want %v", got, want)
	}
}
