package termui

import (
	"strings"
	"testing"
	"time"

	"gitagent.dev/agenttool"
	"gitagent.dev/config"
	"gitagent.dev/loop"
)

func TestFormatToolUse(t *testing.T) {
	cfg := config.Default()
	cfg.RepoPath = t.TempDir()
	reg, err := agenttool.NewRegistry(cfg, agenttool.NewLocal(cfg))
	if err != nil {
		t.Fatal(err)
	}
	ui := New(cfg, reg)

	tests := []struct {
		name  string
		msg   loop.AgentMessage
		want  string
		error bool
	}{
		{
			name: "structured input",
			msg:  loop.AgentMessage{ToolName: "ReadFile", ToolInput: `{"file_path":"a.py"}`},
			want: "📖 a.py",
		},
		{
			name: "loose input",
			msg:  loop.AgentMessage{ToolName: "ModifyCode", ToolInput: `{"input":"file_path='pkg/b.py', new_content='x'"}`},
			want: "⌨️  pkg/b.py",
		},
		{
			name: "stash pop",
			msg:  loop.AgentMessage{ToolName: "StashChanges", ToolInput: `"pop"`},
			want: "📦 pop stash",
		},
		{
			name: "default argument shown",
			msg:  loop.AgentMessage{ToolName: "CommitAndPush", ToolInput: `{"file_path":"a.py"}`},
			want: "🌱 a.py: Update code",
		},
		{
			name: "no directory",
			msg:  loop.AgentMessage{ToolName: "ListFiles", ToolInput: `{}`},
			want: "📂 .",
		},
		{
			name:  "failed call",
			msg:   loop.AgentMessage{ToolName: "DeleteFile", ToolInput: `{}`, ToolError: true},
			want:  "🗑️",
			error: true,
		},
		{
			name: "unknown tool",
			msg:  loop.AgentMessage{ToolName: "Mystery", ToolInput: `{"a":1}`},
			want: `🛠️  Mystery: {"a":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ui.formatToolUse(&tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("formatToolUse() = %q, want it to contain %q", got, tt.want)
			}
			if strings.HasPrefix(got, "〰️") != tt.error {
				t.Errorf("error marker mismatch in %q", got)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("Error: boom\ndetails"); got != "Error: boom" {
		t.Errorf("firstLine() = %q", got)
	}
	if got := firstLine("single"); got != "single" {
		t.Errorf("firstLine() = %q", got)
	}
}

func TestTranscriptLines(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	msgs := []loop.AgentMessage{
		{Type: loop.UserMessageType, Content: "read a.py\nplease", Timestamp: ts},
		{Type: loop.ToolMessageType, ToolName: "ReadFile", ToolResult: "File a.py does not exist.", Timestamp: ts},
		{Type: loop.ToolMessageType, ToolName: "DeleteFile", ToolResult: "Error: Missing file_path parameter.", ToolError: true, Timestamp: ts},
		{Type: loop.AgentMessageType, Content: "It is missing.", Timestamp: ts},
	}
	want := []string{
		"15:04:05 🦸 read a.py",
		"15:04:05 🛠️  ReadFile ✓ File a.py does not exist.",
		"15:04:05 🛠️  DeleteFile ✗ Error: Missing file_path parameter.",
		"15:04:05 🕴️  It is missing.",
	}
	got := transcriptLines(msgs)
	if len(got) != len(want) {
		t.Fatalf("transcriptLines() = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStateLines(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	var history []loop.StateTransition
	for range 12 {
		history = append(history, loop.StateTransition{From: loop.StateSendingToLLM, To: loop.StateProcessingLLMResponse, Description: "reply", Timestamp: ts})
	}
	got := stateLines(loop.StateWaitingForUserInput, history, 10)
	if len(got) != 11 {
		t.Fatalf("got %d lines, want 11", len(got))
	}
	if got[0] != "State: WaitingForUserInput" {
		t.Errorf("header = %q", got[0])
	}
	if want := "- 15:04:05 SendingToLLM -> ProcessingLLMResponse (reply)"; got[1] != want {
		t.Errorf("line = %q, want %q", got[1], want)
	}
}
