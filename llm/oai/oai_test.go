package oai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"gitagent.dev/llm"
)

func TestRequiresMaxCompletionTokens(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"gpt-5", true},
		{"gpt-5-mini", true},
		{"o3-2025-04-16", true},
		{"o4-mini", true},
		{"gpt-4o", false},
		{"gpt-4.1-mini", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := requiresMaxCompletionTokens(tt.model); got != tt.expected {
				t.Errorf("requiresMaxCompletionTokens(%q) = %v, expected %v", tt.model, got, tt.expected)
			}
		})
	}
}

func TestRequestConversion(t *testing.T) {
	s := &Service{Model: "gpt-4o"}
	req := s.request(&llm.Request{
		System: "You are a git assistant.",
		Messages: []llm.Message{
			llm.UserStringMessage("read a.py"),
			{
				Role: llm.MessageRoleAssistant,
				Content: []llm.Content{{
					ID: "call_1", Type: llm.ContentTypeToolUse, ToolName: "ReadFile",
					ToolInput: json.RawMessage(`{"file_path":"a.py"}`),
				}},
			},
			llm.ToolResultMessage(llm.Content{Type: llm.ContentTypeToolResult, ToolUseID: "call_1", ToolResult: "print(1)"}),
		},
		Tools: []*llm.Tool{{Name: "ReadFile", Description: "Reads a file.", InputSchema: llm.MustSchema(`{"type":"object"}`)}},
	})

	if len(req.Messages) != 4 {
		t.Fatalf("got %d messages, want 4: %+v", len(req.Messages), req.Messages)
	}
	wantRoles := []string{"system", "user", "assistant", "tool"}
	for i, r := range wantRoles {
		if req.Messages[i].Role != r {
			t.Errorf("message %d role = %q, want %q", i, req.Messages[i].Role, r)
		}
	}
	if tc := req.Messages[2].ToolCalls; len(tc) != 1 || tc[0].Function.Name != "ReadFile" {
		t.Errorf("assistant tool calls = %+v", tc)
	}
	if m := req.Messages[3]; m.ToolCallID != "call_1" || m.Content != "print(1)" {
		t.Errorf("tool message = %+v", m)
	}
	if req.MaxTokens != DefaultMaxTokens || req.MaxCompletionTokens != 0 {
		t.Errorf("token limits = %d / %d", req.MaxTokens, req.MaxCompletionTokens)
	}
	if len(req.Tools) != 1 || req.Tools[0].Function.Name != "ReadFile" {
		t.Errorf("tools = %+v", req.Tools)
	}
}

func TestDo(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "ReadFile", "arguments": "{\"file_path\":\"a.py\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`)
	}))
	defer srv.Close()

	s := &Service{APIKey: "test", BaseURL: srv.URL + "/v1", HTTPC: srv.Client()}
	resp, err := s.Do(context.Background(), &llm.Request{Messages: []llm.Message{llm.UserStringMessage("hi")}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != DefaultModel {
		t.Errorf("request model = %q, want %q", got.Model, DefaultModel)
	}
	if resp.StopReason != llm.StopReasonToolUse {
		t.Errorf("StopReason = %v", resp.StopReason)
	}
	uses := resp.ToolUses()
	if len(uses) != 1 || uses[0].ID != "call_1" || string(uses[0].ToolInput) != `{"file_path":"a.py"}` {
		t.Errorf("tool uses = %+v", uses)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestDoClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	s := &Service{APIKey: "nope", BaseURL: srv.URL + "/v1", HTTPC: srv.Client()}
	_, err := s.Do(context.Background(), &llm.Request{Messages: []llm.Message{llm.UserStringMessage("hi")}})
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("err = %v, want status 401", err)
	}
}
