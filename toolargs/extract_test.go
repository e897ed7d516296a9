package toolargs

import (
	"encoding/json"
	"reflect"
	"testing"
)

var (
	modifySpec = Spec{
		Params:     []string{"file_path", "new_content", "commit_message"},
		Positional: "file_path",
		Defaults:   map[string]any{"commit_message": "Update code"},
	}
	readSpec = Spec{
		Params:     []string{"file_path"},
		Positional: "file_path",
	}
	listSpec = Spec{
		Params:     []string{"directory_path"},
		Positional: "directory_path",
		Aliases:    map[string]string{"directory": "directory_path", "path": "directory_path"},
	}
	commitSpec = Spec{
		Params:     []string{"file_path", "commit_message"},
		Positional: "file_path",
		Defaults:   map[string]any{"commit_message": "Update code"},
	}
	stashSpec = Spec{
		Params: []string{"pop", "message"},
		Bools:  []string{"pop"},
		Flags:  map[string]string{"pop": "pop"},
	}
	commandSpec = Spec{
		Params:     []string{"command", "timeout"},
		Positional: "command",
	}
	statusSpec = Spec{}
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		raw  Raw
		want Args
	}{
		{
			name: "pairs with content",
			spec: modifySpec,
			raw:  Text(`file_path='src/app.py', new_content='print(1)', commit_message='Add app'`),
			want: Args{"file_path": "src/app.py", "new_content": "print(1)", "commit_message": "Add app"},
		},
		{
			name: "content escapes",
			spec: modifySpec,
			raw:  Text(`file_path="a.py", new_content="line1\nline2\tend"`),
			want: Args{"file_path": "a.py", "new_content": "line1\nline2\tend", "commit_message": "Update code"},
		},
		{
			name: "escaped delimiter inside content",
			spec: modifySpec,
			raw:  Text(`new_content='it\'s', file_path='a.py'`),
			want: Args{"file_path": "a.py", "new_content": "it's", "commit_message": "Update code"},
		},
		{
			name: "unescaped inner quotes",
			spec: modifySpec,
			raw:  Text(`file_path='a.py', new_content='print('hi')', commit_message='x'`),
			want: Args{"file_path": "a.py", "new_content": "print('hi')", "commit_message": "x"},
		},
		{
			name: "unterminated content",
			spec: modifySpec,
			raw:  Text(`file_path='a.py', new_content='def f():\n    return 1`),
			want: Args{"file_path": "a.py", "new_content": "def f():\n    return 1", "commit_message": "Update code"},
		},
		{
			name: "triple quoted content",
			spec: modifySpec,
			raw:  Text(`new_content="""a "quoted" word""", file_path='a'`),
			want: Args{"file_path": "a", "new_content": `a "quoted" word`, "commit_message": "Update code"},
		},
		{
			name: "quoted commas preserved",
			spec: modifySpec,
			raw:  Text(`file_path='a.py', new_content='x', commit_message='a, b, c'`),
			want: Args{"file_path": "a.py", "new_content": "x", "commit_message": "a, b, c"},
		},
		{
			name: "trailing comma",
			spec: readSpec,
			raw:  Text(`file_path = 'a.py',`),
			want: Args{"file_path": "a.py"},
		},
		{
			name: "trailing comma and space after last pair",
			spec: commitSpec,
			raw:  Text(`file_path = "a.py", commit_message = 'msg', `),
			want: Args{"file_path": "a.py", "commit_message": "msg"},
		},
		{
			name: "empty segment between pairs",
			spec: commitSpec,
			raw:  Text(`file_path='a.py',, commit_message='msg'`),
			want: Args{"file_path": "a.py", "commit_message": "msg"},
		},
		{
			name: "structured passes through with defaults",
			spec: modifySpec,
			raw:  Structured(map[string]any{"file_path": "a.py", "new_content": "x"}),
			want: Args{"file_path": "a.py", "new_content": "x", "commit_message": "Update code"},
		},
		{
			name: "json object text",
			spec: modifySpec,
			raw:  Text(`{"file_path": "a.py", "new_content": "x, y = 1, 2"}`),
			want: Args{"file_path": "a.py", "new_content": "x, y = 1, 2", "commit_message": "Update code"},
		},
		{
			name: "lone input field",
			spec: readSpec,
			raw:  Structured(map[string]any{"input": "file_path='docs/a.md'"}),
			want: Args{"file_path": "docs/a.md"},
		},
		{
			name: "input field beside blank parameters",
			spec: readSpec,
			raw:  Structured(map[string]any{"input": "notes.txt", "file_path": ""}),
			want: Args{"file_path": "notes.txt"},
		},
		{
			name: "bare quoted value",
			spec: readSpec,
			raw:  Text(`'README.md'`),
			want: Args{"file_path": "README.md"},
		},
		{
			name: "empty text",
			spec: modifySpec,
			raw:  Text("   "),
			want: Args{"commit_message": "Update code"},
		},
		{
			name: "none becomes nil",
			spec: listSpec,
			raw:  Text(`directory_path=None`),
			want: Args{"directory_path": nil},
		},
		{
			name: "alias folded",
			spec: listSpec,
			raw:  Structured(map[string]any{"directory": "src"}),
			want: Args{"directory_path": "src"},
		},
		{
			name: "bare flag",
			spec: stashSpec,
			raw:  Text("pop"),
			want: Args{"pop": true},
		},
		{
			name: "bool pair",
			spec: stashSpec,
			raw:  Text("pop=True, message='wip'"),
			want: Args{"pop": true, "message": "wip"},
		},
		{
			name: "unquoted value keeps commas",
			spec: commitSpec,
			raw:  Text("commit_message=Fix parser, add tests, file_path=a.py"),
			want: Args{"commit_message": "Fix parser, add tests", "file_path": "a.py"},
		},
		{
			name: "apostrophe in unquoted value",
			spec: commitSpec,
			raw:  Text("commit_message=Don't panic, file_path='x.py'"),
			want: Args{"commit_message": "Don't panic", "file_path": "x.py"},
		},
		{
			name: "assignment in a bare command",
			spec: commandSpec,
			raw:  Text("FOO=bar make test"),
			want: Args{"command": "FOO=bar make test"},
		},
		{
			name: "numbers formatted",
			spec: commandSpec,
			raw:  Structured(map[string]any{"command": "ls", "timeout": float64(30)}),
			want: Args{"command": "ls", "timeout": "30"},
		},
		{
			name: "tool without positional ignores bare text",
			spec: statusSpec,
			raw:  Text("please"),
			want: Args{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.spec, tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestExtractPairsMatchStructured(t *testing.T) {
	fromText := Extract(modifySpec, Text(`file_path='pkg/x.go', new_content='package x', commit_message='init'`))
	fromMap := Extract(modifySpec, Structured(map[string]any{
		"file_path":      "pkg/x.go",
		"new_content":    "package x",
		"commit_message": "init",
	}))
	if !reflect.DeepEqual(fromText, fromMap) {
		t.Errorf("text form %#v differs from structured form %#v", fromText, fromMap)
	}
}

func TestFromJSON(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantKind Kind
		wantText string
	}{
		{name: "string", in: `"file_path='a'"`, wantKind: KindText, wantText: "file_path='a'"},
		{name: "null", in: `null`, wantKind: KindText, wantText: ""},
		{name: "empty", in: ``, wantKind: KindText, wantText: ""},
		{name: "object", in: `{"a": 1}`, wantKind: KindStructured},
		{name: "number", in: `42`, wantKind: KindText, wantText: "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := FromJSON(json.RawMessage(tt.in))
			if err != nil {
				t.Fatalf("FromJSON(%q) error: %v", tt.in, err)
			}
			if raw.Kind() != tt.wantKind {
				t.Errorf("kind = %v, want %v", raw.Kind(), tt.wantKind)
			}
			if raw.Kind() == KindText && raw.Text() != tt.wantText {
				t.Errorf("text = %q, want %q", raw.Text(), tt.wantText)
			}
		})
	}

	raw, err := FromJSON(json.RawMessage(`{"timeout": 5}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := Extract(commandSpec, raw).Int("timeout", 0); got != 5 {
		t.Errorf("timeout = %d, want 5", got)
	}

	if _, err := FromJSON(json.RawMessage(`{"a":`)); err == nil {
		t.Error("expected error for truncated object")
	}
}

func TestArgs(t *testing.T) {
	a := Args{"file_path": "a.py", "blank": "  ", "nothing": nil, "flag": "yes"}
	if !a.Present("file_path") {
		t.Error("file_path should be present")
	}
	for _, k := range []string{"blank", "nothing", "absent"} {
		if a.Present(k) {
			t.Errorf("%s should not be present", k)
		}
	}
	if k, ok := a.Missing("file_path", "blank"); !ok || k != "blank" {
		t.Errorf("Missing() = %q, %v; want blank, true", k, ok)
	}
	if !a.Bool("flag") {
		t.Error("flag should be true")
	}
	if a.Int("file_path", 7) != 7 {
		t.Error("malformed int should fall back to the default")
	}
	if a.Err() != "" {
		t.Errorf("Err() = %q, want empty", a.Err())
	}
}
