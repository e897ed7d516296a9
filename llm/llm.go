// Package llm provides a provider-neutral interface for chat models that call tools.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

type Service interface {
	// Do sends a request to an LLM.
	Do(context.Context, *Request) (*Response, error)
}

// MustSchema validates that schema is valid JSON and returns it as a json.RawMessage.
// It panics if the schema is invalid.
func MustSchema(schema string) json.RawMessage {
	schema = strings.TrimSpace(schema)
	bytes := []byte(schema)
	if !json.Valid(bytes) {
		panic("invalid JSON schema: " + schema)
	}
	return json.RawMessage(bytes)
}

type Request struct {
	Messages []Message
	Tools    []*Tool
	System   string
}

// Message represents a message in the conversation.
type Message struct {
	Role    MessageRole
	Content []Content
}

// Tool represents a tool available to an LLM.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	// Run is called with the tool input as provided by the model.
	// Its output is sent back to the model.
	Run func(ctx context.Context, input json.RawMessage) (string, error) `json:"-"`
}

type Content struct {
	ID   string
	Type ContentType
	Text string

	// for tool_use
	ToolName  string
	ToolInput json.RawMessage

	// for tool_result
	ToolUseID  string
	ToolError  bool
	ToolResult string
}

func StringContent(s string) Content {
	return Content{Type: ContentTypeText, Text: s}
}

// ContentsAttr returns contents as a slog.Attr.
// It is meant for logging.
func ContentsAttr(contents []Content) slog.Attr {
	var contentAttrs []any // slog.Attr
	for i, content := range contents {
		var attrs []any // slog.Attr
		switch content.Type {
		case ContentTypeText:
			attrs = append(attrs, slog.String("text", content.Text))
		case ContentTypeToolUse:
			attrs = append(attrs, slog.String("tool_name", content.ToolName))
			attrs = append(attrs, slog.String("tool_input", string(content.ToolInput)))
		case ContentTypeToolResult:
			attrs = append(attrs, slog.String("tool_result", content.ToolResult))
			attrs = append(attrs, slog.Bool("tool_error", content.ToolError))
		default:
			attrs = append(attrs, slog.String("unknown_content_type", content.Type.String()))
		}
		key := content.ID
		if key == "" {
			key = fmt.Sprint(i)
		}
		contentAttrs = append(contentAttrs, slog.Group(key, attrs...))
	}
	return slog.Group("contents", contentAttrs...)
}

type (
	MessageRole int
	ContentType int
	StopReason  int
)

//go:generate go tool golang.org/x/tools/cmd/stringer -type=MessageRole,ContentType,StopReason -output=llm_string.go

const (
	MessageRoleUser MessageRole = iota
	MessageRoleAssistant
)

const (
	ContentTypeText ContentType = iota
	ContentTypeToolUse
	ContentTypeToolResult
)

const (
	StopReasonStopSequence StopReason = iota
	StopReasonMaxTokens
	StopReasonEndTurn
	StopReasonToolUse
)

type Response struct {
	ID         string
	Model      string
	Role       MessageRole
	Content    []Content
	StopReason StopReason
	Usage      Usage
}

func (m *Response) ToMessage() Message {
	return Message{
		Role:    m.Role,
		Content: m.Content,
	}
}

// ToolUses returns the tool_use contents of the response.
func (m *Response) ToolUses() []Content {
	var uses []Content
	for _, c := range m.Content {
		if c.Type == ContentTypeToolUse {
			uses = append(uses, c)
		}
	}
	return uses
}

// Text joins the text contents of the response.
func (m *Response) Text() string {
	var parts []string
	for _, c := range m.Content {
		if c.Type == ContentTypeText && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Usage represents the billing and rate-limit usage.
type Usage struct {
	InputTokens  uint64 `json:"input_tokens"`
	OutputTokens uint64 `json:"output_tokens"`
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

func (u *Usage) String() string {
	return fmt.Sprintf("in: %d, out: %d", u.InputTokens, u.OutputTokens)
}

func (u *Usage) IsZero() bool {
	return *u == Usage{}
}

func (u *Usage) Attr() slog.Attr {
	return slog.Group("usage",
		slog.Uint64("input_tokens", u.InputTokens),
		slog.Uint64("output_tokens", u.OutputTokens),
	)
}

// UserStringMessage creates a user message with a single text content item.
func UserStringMessage(text string) Message {
	return Message{
		Role:    MessageRoleUser,
		Content: []Content{StringContent(text)},
	}
}

// ToolResultMessage creates the user message answering tool uses.
func ToolResultMessage(results ...Content) Message {
	return Message{Role: MessageRoleUser, Content: results}
}
