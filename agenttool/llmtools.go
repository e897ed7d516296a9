package agenttool

import (
	"context"
	"encoding/json"
	"slices"

	"gitagent.dev/llm"
)

// InputKey is the schema property carrying free-text input.
const InputKey = "input"

// InputSchema is the JSON schema of a tool's input: every parameter as an
// optional property, plus InputKey for the loose "key = 'value'" form.
func (i Info) InputSchema() json.RawMessage {
	props := map[string]any{
		InputKey: map[string]any{
			"type":        "string",
			"description": "Alternative to the named parameters: free text such as file_path = 'a.py', new_content = '...'.",
		},
	}
	for _, p := range i.Params {
		typ := "string"
		if slices.Contains(i.Bools, p) {
			typ = "boolean"
		}
		prop := map[string]any{"type": typ}
		if doc := ParamDoc(p); doc != "" {
			prop["description"] = doc
		}
		props[p] = prop
	}
	schema, err := json.Marshal(map[string]any{"type": "object", "properties": props})
	if err != nil {
		panic(err)
	}
	return schema
}

// LLMTools renders the registry as tools for a chat model.
func (r *Registry) LLMTools() []*llm.Tool {
	var tools []*llm.Tool
	for _, info := range r.Tools() {
		name := info.Name
		tools = append(tools, &llm.Tool{
			Name:        name,
			Description: info.Description,
			InputSchema: info.InputSchema(),
			Run: func(ctx context.Context, input json.RawMessage) (string, error) {
				return r.Call(ctx, name, input), nil
			},
		})
	}
	return tools
}
