package loop

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"gitagent.dev/llm"
)

// scriptedService answers requests with canned responses, in order.
type scriptedService struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  []*llm.Request
}

func (s *scriptedService) Do(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("no more scripted responses")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func toolUse(id, name, input string) *llm.Response {
	return &llm.Response{
		Role:       llm.MessageRoleAssistant,
		StopReason: llm.StopReasonToolUse,
		Content: []llm.Content{{
			ID:        id,
			Type:      llm.ContentTypeToolUse,
			ToolName:  name,
			ToolInput: json.RawMessage(input),
		}},
		Usage: llm.Usage{InputTokens: 10, OutputTokens: 2},
	}
}

func answer(text string) *llm.Response {
	return &llm.Response{
		Role:       llm.MessageRoleAssistant,
		StopReason: llm.StopReasonEndTurn,
		Content:    []llm.Content{llm.StringContent(text)},
		Usage:      llm.Usage{InputTokens: 20, OutputTokens: 5},
	}
}

// echoTool records its inputs and returns a fixed output.
func echoTool(name, out string, inputs *[]string) *llm.Tool {
	return &llm.Tool{
		Name:        name,
		InputSchema: llm.MustSchema(`{"type":"object"}`),
		Run: func(ctx context.Context, input json.RawMessage) (string, error) {
			*inputs = append(*inputs, string(input))
			return out, nil
		},
	}
}

func TestTurnRunsToolsThenAnswers(t *testing.T) {
	var inputs []string
	svc := &scriptedService{responses: []*llm.Response{
		toolUse("call_1", "ReadFile", `{"file_path":"a.py"}`),
		answer("a.py prints 1"),
	}}
	var seen []AgentMessage
	a := NewAgent(AgentConfig{
		Service:   svc,
		Tools:     []*llm.Tool{echoTool("ReadFile", "print(1)", &inputs)},
		OnMessage: func(m AgentMessage) { seen = append(seen, m) },
	})

	got, err := a.Turn(context.Background(), "what does a.py do?")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if got != "a.py prints 1" {
		t.Errorf("Turn = %q", got)
	}
	if len(inputs) != 1 || inputs[0] != `{"file_path":"a.py"}` {
		t.Errorf("tool inputs = %v", inputs)
	}

	if len(svc.requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(svc.requests))
	}
	second := svc.requests[1]
	if len(second.Tools) != 1 || second.System != DefaultSystemPrompt {
		t.Errorf("request tools/system not forwarded")
	}
	// user, assistant tool use, tool result
	if len(second.Messages) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second.Messages))
	}
	result := second.Messages[2].Content[0]
	if result.Type != llm.ContentTypeToolResult || result.ToolUseID != "call_1" || result.ToolResult != "print(1)" || result.ToolError {
		t.Errorf("tool result = %+v", result)
	}

	var types []MessageType
	for _, m := range seen {
		types = append(types, m.Type)
	}
	want := []MessageType{UserMessageType, ToolMessageType, AgentMessageType}
	if len(types) != len(want) {
		t.Fatalf("message types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("message %d type = %s, want %s", i, types[i], want[i])
		}
	}
	if !seen[len(seen)-1].EndOfTurn {
		t.Error("last message should end the turn")
	}

	if u := a.TotalUsage(); u.InputTokens != 30 || u.OutputTokens != 7 {
		t.Errorf("usage = %s", u.String())
	}
	if a.CurrentState() != StateWaitingForUserInput {
		t.Errorf("state after turn = %s", a.CurrentState())
	}
}

func TestTurnIterationLimit(t *testing.T) {
	var inputs []string
	svc := &scriptedService{}
	for range 10 {
		svc.responses = append(svc.responses, toolUse("c", "ListFiles", `{}`))
	}
	a := NewAgent(AgentConfig{
		Service:       svc,
		Tools:         []*llm.Tool{echoTool("ListFiles", "a.py (10 bytes)", &inputs)},
		MaxIterations: 3,
	})

	got, err := a.Turn(context.Background(), "loop forever")
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("err = %v, want ErrIterationLimit", err)
	}
	if got != iterationLimitMessage {
		t.Errorf("Turn = %q", got)
	}
	if len(svc.requests) != 3 || len(inputs) != 3 {
		t.Errorf("requests = %d, tool runs = %d, want 3 each", len(svc.requests), len(inputs))
	}
}

func TestTurnToolErrors(t *testing.T) {
	failing := &llm.Tool{
		Name: "CommitAndPush",
		Run: func(ctx context.Context, input json.RawMessage) (string, error) {
			return "Error: Missing file_path parameter.", nil
		},
	}
	svc := &scriptedService{responses: []*llm.Response{
		{
			StopReason: llm.StopReasonToolUse,
			Content: []llm.Content{
				{ID: "1", Type: llm.ContentTypeToolUse, ToolName: "CommitAndPush", ToolInput: json.RawMessage(`{}`)},
				{ID: "2", Type: llm.ContentTypeToolUse, ToolName: "Nope", ToolInput: json.RawMessage(`{}`)},
			},
		},
		answer("done"),
	}}
	a := NewAgent(AgentConfig{Service: svc, Tools: []*llm.Tool{failing}})
	if _, err := a.Turn(context.Background(), "commit"); err != nil {
		t.Fatal(err)
	}

	results := svc.requests[1].Messages[2].Content
	if len(results) != 2 {
		t.Fatalf("got %d tool results, want 2", len(results))
	}
	for _, r := range results {
		if !r.ToolError {
			t.Errorf("result %s should be an error: %q", r.ToolUseID, r.ToolResult)
		}
	}
	if results[1].ToolResult != "Error: Unknown tool Nope." {
		t.Errorf("unknown tool result = %q", results[1].ToolResult)
	}
}

func TestTurnServiceError(t *testing.T) {
	svc := &scriptedService{err: errors.New("status 401: bad key")}
	a := NewAgent(AgentConfig{Service: svc})
	_, err := a.Turn(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("err = %v", err)
	}
	msgs := a.Messages()
	if last := msgs[len(msgs)-1]; last.Type != ErrorMessageType || !last.EndOfTurn {
		t.Errorf("last message = %+v", last)
	}
	if a.CurrentState() != StateWaitingForUserInput {
		t.Errorf("state after failed turn = %s", a.CurrentState())
	}
	var states []State
	for _, tr := range a.StateHistory() {
		states = append(states, tr.To)
	}
	if !slices.Contains(states, StateError) {
		t.Errorf("state history %v lacks %s", states, StateError)
	}
}

func TestTurnCancelledBeforeTools(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	tool := &llm.Tool{
		Name: "RunCommand",
		Run: func(ctx context.Context, input json.RawMessage) (string, error) {
			ran = true
			return "", nil
		},
	}
	svc := &cancellingService{cancel: cancel, resp: toolUse("1", "RunCommand", `{"command":"make"}`)}
	a := NewAgent(AgentConfig{Service: svc, Tools: []*llm.Tool{tool}})

	_, err := a.Turn(ctx, "build it")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("tool ran after cancellation")
	}
}

// cancellingService cancels the turn as it returns its response.
type cancellingService struct {
	cancel context.CancelFunc
	resp   *llm.Response
}

func (s *cancellingService) Do(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	s.cancel()
	return s.resp, nil
}
