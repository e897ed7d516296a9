// Package loop drives a chat session: user text goes to the model together
// with the tool list, requested tools run, and their results go back until
// the model ends its turn or the iteration limit is reached.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gitagent.dev/llm"
)

const (
	// DefaultMaxIterations bounds the model calls of one turn.
	DefaultMaxIterations = 5

	DefaultSystemPrompt = `You are a developer assistant working in a cloned git repository.
Use the tools to read, create and delete files, manage branches, commit and push,
open pull requests, search code, run commands, tests and linters.
Paths are relative to the repository root. Prefer reading a file before changing it,
and commit with a short descriptive message.`

	iterationLimitMessage = "Agent stopped due to iteration limit."
	cancelledToolResult   = "Error: tool call cancelled by the user."
)

// ErrIterationLimit is returned by Turn when the model kept requesting tools
// after the last allowed iteration.
var ErrIterationLimit = errors.New("iteration limit reached")

type MessageType string

const (
	UserMessageType  MessageType = "user"
	AgentMessageType MessageType = "agent"
	ToolMessageType  MessageType = "tool"
	ErrorMessageType MessageType = "error"
)

// AgentMessage is one entry of the session transcript, as shown to a user.
type AgentMessage struct {
	Type MessageType `json:"type"`
	// EndOfTurn is set on the last message of a turn.
	EndOfTurn bool `json:"end_of_turn"`

	Content    string `json:"content"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolInput  string `json:"input,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`
	ToolError  bool   `json:"tool_error,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	Timestamp time.Time      `json:"timestamp"`
	Elapsed   *time.Duration `json:"elapsed,omitempty"`
	Usage     *llm.Usage     `json:"usage,omitempty"`
}

// Attr returns the message as a slog.Attr for logging.
func (m *AgentMessage) Attr() slog.Attr {
	attrs := []any{slog.String("type", string(m.Type))}
	if m.EndOfTurn {
		attrs = append(attrs, slog.Bool("end_of_turn", true))
	}
	if m.Content != "" {
		attrs = append(attrs, slog.String("content", m.Content))
	}
	if m.ToolName != "" {
		attrs = append(attrs, slog.String("tool_name", m.ToolName))
	}
	if m.ToolError {
		attrs = append(attrs, slog.Bool("tool_error", true))
	}
	return slog.Group("agent_message", attrs...)
}

type AgentConfig struct {
	Service       llm.Service
	Tools         []*llm.Tool
	SystemPrompt  string
	MaxIterations int
	// OnMessage, if set, receives every transcript entry as it is produced.
	OnMessage func(AgentMessage)
}

type Agent struct {
	svc           llm.Service
	tools         []*llm.Tool
	toolsByName   map[string]*llm.Tool
	system        string
	maxIterations int
	onMessage     func(AgentMessage)
	stateMachine  *StateMachine

	// turnMu serializes turns.
	turnMu sync.Mutex

	mu       sync.Mutex
	convo    []llm.Message
	history  []AgentMessage
	usage    llm.Usage
	lastTurn time.Duration
}

func NewAgent(config AgentConfig) *Agent {
	a := &Agent{
		svc:           config.Service,
		tools:         config.Tools,
		toolsByName:   make(map[string]*llm.Tool, len(config.Tools)),
		system:        config.SystemPrompt,
		maxIterations: config.MaxIterations,
		onMessage:     config.OnMessage,
		stateMachine:  NewStateMachine(),
	}
	if a.system == "" {
		a.system = DefaultSystemPrompt
	}
	if a.maxIterations <= 0 {
		a.maxIterations = DefaultMaxIterations
	}
	for _, t := range config.Tools {
		a.toolsByName[t.Name] = t
	}
	a.stateMachine.Transition(context.Background(), StateWaitingForUserInput, "agent created")
	return a
}

// Turn sends text to the model and runs tools until the model answers
// without tool use. It returns the model's final text.
// If the iteration limit is reached it returns the last text and ErrIterationLimit.
func (a *Agent) Turn(ctx context.Context, text string) (string, error) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	start := time.Now()
	defer func() {
		a.mu.Lock()
		a.lastTurn = time.Since(start)
		a.mu.Unlock()
		a.transition(ctx, StateWaitingForUserInput, "turn finished")
	}()

	a.appendConvo(llm.UserStringMessage(text))
	a.push(ctx, AgentMessage{Type: UserMessageType, Content: text, Timestamp: time.Now()})

	var last string
	for i := range a.maxIterations {
		a.transition(ctx, StateSendingToLLM, fmt.Sprintf("iteration %d", i+1))
		resp, err := a.svc.Do(ctx, &llm.Request{
			Messages: a.conversation(),
			Tools:    a.tools,
			System:   a.system,
		})
		if err != nil {
			if ctx.Err() != nil {
				a.transition(ctx, StateCancelled, "request cancelled")
				return last, ctx.Err()
			}
			a.transition(ctx, StateError, err.Error())
			a.push(ctx, AgentMessage{Type: ErrorMessageType, Content: err.Error(), EndOfTurn: true, Timestamp: time.Now()})
			return last, fmt.Errorf("model request failed: %w", err)
		}
		a.transition(ctx, StateProcessingLLMResponse, resp.StopReason.String())

		a.mu.Lock()
		a.usage.Add(resp.Usage)
		a.convo = append(a.convo, resp.ToMessage())
		a.mu.Unlock()

		last = resp.Text()
		uses := resp.ToolUses()
		if resp.StopReason != llm.StopReasonToolUse || len(uses) == 0 {
			a.transition(ctx, StateEndOfTurn, "no tool use")
			elapsed := time.Since(start)
			usage := resp.Usage
			a.push(ctx, AgentMessage{
				Type:      AgentMessageType,
				Content:   last,
				EndOfTurn: true,
				Timestamp: time.Now(),
				Elapsed:   &elapsed,
				Usage:     &usage,
			})
			return last, nil
		}
		if last != "" {
			a.push(ctx, AgentMessage{Type: AgentMessageType, Content: last, Timestamp: time.Now()})
		}

		a.transition(ctx, StateRunningTools, fmt.Sprintf("%d tool calls", len(uses)))
		results, cancelled := a.runTools(ctx, uses)
		a.appendConvo(llm.ToolResultMessage(results...))
		if cancelled {
			a.transition(ctx, StateCancelled, "tools cancelled")
			return last, ctx.Err()
		}
	}

	a.transition(ctx, StateIterationLimit, fmt.Sprintf("%d iterations", a.maxIterations))
	slog.WarnContext(ctx, "turn stopped at iteration limit", "max_iterations", a.maxIterations)
	a.push(ctx, AgentMessage{Type: ErrorMessageType, Content: iterationLimitMessage, EndOfTurn: true, Timestamp: time.Now()})
	if last == "" {
		last = iterationLimitMessage
	}
	return last, ErrIterationLimit
}

// runTools executes uses in order. Once ctx is done the remaining uses
// are answered with a cancellation result without running.
func (a *Agent) runTools(ctx context.Context, uses []llm.Content) (results []llm.Content, cancelled bool) {
	for _, use := range uses {
		result := llm.Content{Type: llm.ContentTypeToolResult, ToolUseID: use.ID}
		if ctx.Err() != nil {
			cancelled = true
			result.ToolResult = cancelledToolResult
			result.ToolError = true
			results = append(results, result)
			continue
		}

		start := time.Now()
		out, isErr := a.runTool(ctx, use)
		elapsed := time.Since(start)
		result.ToolResult = out
		result.ToolError = isErr
		results = append(results, result)

		a.push(ctx, AgentMessage{
			Type:       ToolMessageType,
			ToolName:   use.ToolName,
			ToolInput:  string(use.ToolInput),
			ToolResult: out,
			ToolError:  isErr,
			ToolCallID: use.ID,
			Timestamp:  time.Now(),
			Elapsed:    &elapsed,
		})
	}
	return results, cancelled
}

func (a *Agent) runTool(ctx context.Context, use llm.Content) (string, bool) {
	tool, ok := a.toolsByName[use.ToolName]
	if !ok {
		slog.WarnContext(ctx, "model requested unknown tool", "tool", use.ToolName)
		return fmt.Sprintf("Error: Unknown tool %s.", use.ToolName), true
	}
	out, err := tool.Run(ctx, use.ToolInput)
	if err != nil {
		return "Error: " + err.Error(), true
	}
	return out, strings.HasPrefix(out, "Error: ")
}

func (a *Agent) transition(ctx context.Context, to State, event string) {
	if err := a.stateMachine.Transition(ctx, to, event); err != nil {
		slog.WarnContext(ctx, "unexpected state transition", "err", err)
	}
}

func (a *Agent) push(ctx context.Context, m AgentMessage) {
	slog.DebugContext(ctx, "agent message", m.Attr())
	a.mu.Lock()
	a.history = append(a.history, m)
	a.mu.Unlock()
	if a.onMessage != nil {
		a.onMessage(m)
	}
}

func (a *Agent) appendConvo(m llm.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.convo = append(a.convo, m)
}

func (a *Agent) conversation() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Message(nil), a.convo...)
}

// Messages returns the transcript so far.
func (a *Agent) Messages() []AgentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AgentMessage(nil), a.history...)
}

func (a *Agent) TotalUsage() llm.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// LastTurnDuration is the wall time of the most recent turn.
func (a *Agent) LastTurnDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastTurn
}

func (a *Agent) CurrentState() State {
	return a.stateMachine.CurrentState()
}

// StateHistory returns the most recent state transitions, oldest first.
func (a *Agent) StateHistory() []StateTransition {
	return a.stateMachine.History()
}

// Reset forgets the conversation. Usage totals are kept.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.convo = nil
	a.history = nil
}
