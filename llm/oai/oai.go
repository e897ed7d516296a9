// Package oai implements llm.Service on the OpenAI chat completions API.
package oai

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"gitagent.dev/llm"
)

const (
	DefaultMaxTokens = 4096
	DefaultModel     = "gpt-4o"

	OpenAIURL = "https://api.openai.com/v1"

	maxAttempts = 6
)

type Service struct {
	HTTPC     *http.Client // defaults to http.DefaultClient if nil
	APIKey    string
	Model     string // defaults to DefaultModel
	BaseURL   string // defaults to OpenAIURL
	MaxTokens int    // defaults to DefaultMaxTokens
}

var _ llm.Service = (*Service)(nil)

var (
	fromLLMRole = map[llm.MessageRole]string{
		llm.MessageRoleAssistant: openai.ChatMessageRoleAssistant,
		llm.MessageRoleUser:      openai.ChatMessageRoleUser,
	}
	toLLMStopReason = map[openai.FinishReason]llm.StopReason{
		openai.FinishReasonStop:          llm.StopReasonStopSequence,
		openai.FinishReasonLength:        llm.StopReasonMaxTokens,
		openai.FinishReasonToolCalls:     llm.StopReasonToolUse,
		openai.FinishReasonFunctionCall:  llm.StopReasonToolUse,
		openai.FinishReasonContentFilter: llm.StopReasonStopSequence,
	}
)

// requiresMaxCompletionTokens reports whether model rejects max_tokens.
func requiresMaxCompletionTokens(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// fromLLMMessage converts msg to chat messages. Tool results become
// separate "tool" role messages, one per call.
func fromLLMMessage(msg llm.Message) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	var text []string
	var toolCalls []openai.ToolCall
	for _, c := range msg.Content {
		switch c.Type {
		case llm.ContentTypeToolResult:
			content := c.ToolResult
			if c.ToolError {
				content = "error: " + cmp.Or(content, "tool execution failed")
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    cmp.Or(content, " "), // empty content is omitted and rejected
				ToolCallID: c.ToolUseID,
			})
		case llm.ContentTypeToolUse:
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   c.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      c.ToolName,
					Arguments: string(c.ToolInput),
				},
			})
		default:
			if c.Text != "" {
				text = append(text, c.Text)
			}
		}
	}
	if len(text) > 0 || len(toolCalls) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:      fromLLMRole[msg.Role],
			Content:   strings.Join(text, "\n"),
			ToolCalls: toolCalls,
		})
	}
	return messages
}

func fromLLMTool(t *llm.Tool) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		},
	}
}

func toLLMContents(msg openai.ChatCompletionMessage) []llm.Content {
	var contents []llm.Content
	if msg.Content != "" {
		contents = append(contents, llm.StringContent(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		id := cmp.Or(tc.ID, "tc_"+tc.Function.Name)
		contents = append(contents, llm.Content{
			ID:        id,
			Type:      llm.ContentTypeToolUse,
			ToolName:  tc.Function.Name,
			ToolInput: json.RawMessage(cmp.Or(tc.Function.Arguments, "{}")),
		})
	}
	return contents
}

func toLLMResponse(r *openai.ChatCompletionResponse) *llm.Response {
	resp := &llm.Response{
		ID:    r.ID,
		Model: r.Model,
		Role:  llm.MessageRoleAssistant,
		Usage: llm.Usage{
			InputTokens:  uint64(r.Usage.PromptTokens),
			OutputTokens: uint64(r.Usage.CompletionTokens),
		},
	}
	if len(r.Choices) == 0 {
		return resp
	}
	choice := r.Choices[0]
	resp.Content = toLLMContents(choice.Message)
	resp.StopReason = toLLMStopReason[choice.FinishReason]
	if len(choice.Message.ToolCalls) > 0 {
		// Some providers report "stop" alongside tool calls.
		resp.StopReason = llm.StopReasonToolUse
	}
	return resp
}

func (s *Service) request(ir *llm.Request) openai.ChatCompletionRequest {
	model := cmp.Or(s.Model, DefaultModel)
	var messages []openai.ChatCompletionMessage
	if ir.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: ir.System})
	}
	for _, msg := range ir.Messages {
		messages = append(messages, fromLLMMessage(msg)...)
	}
	var tools []openai.Tool
	for _, t := range ir.Tools {
		tools = append(tools, fromLLMTool(t))
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
	}
	if requiresMaxCompletionTokens(model) {
		req.MaxCompletionTokens = cmp.Or(s.MaxTokens, DefaultMaxTokens)
	} else {
		req.MaxTokens = cmp.Or(s.MaxTokens, DefaultMaxTokens)
	}
	return req
}

// Do sends a request to the chat completions endpoint, retrying server
// errors and rate limits with backoff.
func (s *Service) Do(ctx context.Context, ir *llm.Request) (*llm.Response, error) {
	config := openai.DefaultConfig(s.APIKey)
	config.BaseURL = cmp.Or(s.BaseURL, OpenAIURL)
	config.HTTPClient = cmp.Or(s.HTTPC, http.DefaultClient)
	client := openai.NewClientWithConfig(config)
	req := s.request(ir)

	backoff := []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}
	var errs error // accumulated across attempts
	for attempts := 0; ; attempts++ {
		if attempts >= maxAttempts {
			return nil, fmt.Errorf("openai request failed after %d attempts: %w", attempts, errs)
		}
		if attempts > 0 {
			sleep := backoff[min(attempts-1, len(backoff)-1)] + time.Duration(rand.Int64N(int64(time.Second)))
			slog.WarnContext(ctx, "openai request sleep before retry", "sleep", sleep, "attempts", attempts)
			select {
			case <-ctx.Done():
				return nil, errors.Join(errs, ctx.Err())
			case <-time.After(sleep):
			}
		}

		resp, err := client.CreateChatCompletion(ctx, req)
		if err == nil {
			return toLLMResponse(&resp), nil
		}

		var apiErr *openai.APIError
		if !errors.As(err, &apiErr) {
			return nil, errors.Join(errs, err)
		}
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			slog.WarnContext(ctx, "openai_request_rate_limited", "error", apiErr.Error())
			errs = errors.Join(errs, fmt.Errorf("status %d (rate limited): %s", apiErr.HTTPStatusCode, apiErr.Error()))
		case apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500:
			// unrecoverable
			return nil, errors.Join(errs, fmt.Errorf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Error()))
		default:
			slog.WarnContext(ctx, "openai_request_failed", "error", apiErr.Error(), "status_code", apiErr.HTTPStatusCode)
			errs = errors.Join(errs, fmt.Errorf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Error()))
		}
	}
}
