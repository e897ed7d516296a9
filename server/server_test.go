package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitagent.dev/agenttool"
	"gitagent.dev/config"
	"gitagent.dev/fileops"
	"gitagent.dev/history"
)

func newTestServer(t *testing.T, opts ...agenttool.Option) (*Server, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.RepoPath = t.TempDir()
	reg, err := agenttool.NewRegistry(cfg, agenttool.NewLocal(cfg), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, reg, "test"), cfg
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s.Handler(), "GET", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
	got := decode[map[string]string](t, w.Body)
	if got["status"] != "ok" || got["version"] != "test" {
		t.Errorf("body = %v", got)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s.Handler(), "GET", "/healthz", "", "X-Request-Id", "abc")
	if got := w.Header().Get("X-Request-Id"); got != "abc" {
		t.Errorf("X-Request-Id = %q", got)
	}
}

func TestListTools(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s.Handler(), "GET", "/tools", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	tools := decode[[]struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Required    []string        `json:"required"`
		InputSchema json.RawMessage `json:"input_schema"`
	}](t, w.Body)
	if len(tools) != len(agenttool.AllTools()) {
		t.Fatalf("got %d tools", len(tools))
	}
	if tools[0].Name != "ModifyCode" || len(tools[0].Required) != 2 || len(tools[0].InputSchema) == 0 {
		t.Errorf("first tool = %+v", tools[0])
	}
}

func TestCallTool(t *testing.T) {
	s, cfg := newTestServer(t)
	h := s.Handler()

	w := do(t, h, "POST", "/tools/ModifyCode", `{"file_path": "src/m.py", "new_content": "a = 1, 2\n"}`)
	got := decode[callResponse](t, w.Body)
	if w.Code != http.StatusOK || got.Error || got.Result != "File src/m.py created successfully." {
		t.Fatalf("ModifyCode: %d %+v", w.Code, got)
	}
	if b, err := os.ReadFile(filepath.Join(cfg.RepoPath, "src", "m.py")); err != nil || string(b) != "a = 1, 2\n" {
		t.Errorf("content = %q, %v", b, err)
	}

	// A JSON string body carries the loose text form.
	w = do(t, h, "POST", "/tools/ReadFile", `"file_path = 'src/m.py'"`)
	got = decode[callResponse](t, w.Body)
	if got.Error || got.Result != "a = 1, 2\n" {
		t.Errorf("ReadFile: %+v", got)
	}

	// So does a body that is not JSON at all.
	w = do(t, h, "POST", "/tools/ReadFile", `src/m.py`)
	got = decode[callResponse](t, w.Body)
	if got.Error || got.Result != "a = 1, 2\n" {
		t.Errorf("ReadFile plain text: %+v", got)
	}

	w = do(t, h, "POST", "/tools/CommitAndPush", `{}`)
	got = decode[callResponse](t, w.Body)
	if !got.Error || got.Kind != "input" || got.Result != "Error: Missing file_path parameter." {
		t.Errorf("CommitAndPush: %+v", got)
	}

	w = do(t, h, "POST", "/tools/DropTables", `{}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown tool status = %d", w.Code)
	}
}

func TestTree(t *testing.T) {
	s, cfg := newTestServer(t)
	if _, err := fileops.CreateFile(context.Background(), cfg, "pkg/a.py", "x"); err != nil {
		t.Fatal(err)
	}
	w := do(t, s.Handler(), "GET", "/tree", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	root := decode[fileops.Node](t, w.Body)
	if root.Type != "directory" || len(root.Children) != 1 || root.Children[0].Name != "pkg" {
		t.Errorf("tree = %+v", root)
	}
}

func TestAPIKey(t *testing.T) {
	s, _ := newTestServer(t)
	s.APIKey = "sekrit"
	h := s.Handler()

	if w := do(t, h, "GET", "/tools", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", w.Code)
	}
	if w := do(t, h, "GET", "/tools", "", "X-API-Key", "sekrit"); w.Code != http.StatusOK {
		t.Errorf("header key: status = %d", w.Code)
	}
	if w := do(t, h, "GET", "/tools", "", "Authorization", "Bearer sekrit"); w.Code != http.StatusOK {
		t.Errorf("bearer key: status = %d", w.Code)
	}
	if w := do(t, h, "GET", "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz should not need a key: status = %d", w.Code)
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	store, err := history.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	s, _ := newTestServer(t, agenttool.WithRecorder(store), agenttool.WithSessionID("s1"))
	h := s.Handler()

	if w := do(t, h, "GET", "/history", ""); w.Code != http.StatusNotFound {
		t.Errorf("history without store: status = %d", w.Code)
	}
	s.History = store

	do(t, h, "POST", "/tools/ListFiles", `{}`)
	do(t, h, "POST", "/tools/ReadFile", `{}`)

	w := do(t, h, "GET", "/history?limit=1", "")
	entries := decode[[]historyEntry](t, w.Body)
	if len(entries) != 1 || entries[0].Tool != "ReadFile" || !entries[0].Error || entries[0].SessionID != "s1" {
		t.Errorf("entries = %+v", entries)
	}

	if w := do(t, h, "GET", "/history?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d", w.Code)
	}
}
