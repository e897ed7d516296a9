// Package agenttool is the tool surface offered to the model: a closed set
// of tools, each recovering its arguments from loosely structured input and
// calling exactly one operation.
package agenttool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"gitagent.dev/config"
	"gitagent.dev/history"
	"gitagent.dev/skribe"
	"gitagent.dev/toolargs"
)

// Recorder receives a record of every invocation.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) error
}

type Registry struct {
	// mu serializes invocations: the working tree, index and current
	// branch are shared by every transport.
	mu sync.Mutex

	cfg       *config.Config
	ops       Operations
	tools     [numTools]binding
	recorder  Recorder
	sessionID string
}

type Option func(*Registry)

// WithRecorder persists every invocation to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// WithSessionID tags recorded invocations with id.
func WithSessionID(id string) Option {
	return func(r *Registry) { r.sessionID = id }
}

// NewRegistry binds every ToolID to ops. It fails if any tool is unbound.
func NewRegistry(cfg *config.Config, ops Operations, opts ...Option) (*Registry, error) {
	return newRegistry(cfg, ops, bindings, opts...)
}

func newRegistry(cfg *config.Config, ops Operations, table map[ToolID]binding, opts ...Option) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agenttool: nil Config")
	}
	if ops == nil {
		return nil, fmt.Errorf("agenttool: nil Operations")
	}
	r := &Registry{cfg: cfg, ops: ops}
	for _, id := range AllTools() {
		b, ok := table[id]
		if !ok || b.run == nil || b.description == "" {
			return nil, fmt.Errorf("agenttool: tool %s has no binding", id)
		}
		for _, req := range b.required {
			if !slices.Contains(b.spec.Params, req) {
				return nil, fmt.Errorf("agenttool: tool %s requires undeclared parameter %s", id, req)
			}
		}
		r.tools[id] = b
	}
	if len(table) != numTools {
		return nil, fmt.Errorf("agenttool: %d bindings for %d tools", len(table), numTools)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Invoke runs tool id on raw input. It never panics.
// Concurrent calls run one at a time.
func (r *Registry) Invoke(ctx context.Context, id ToolID, raw toolargs.Raw) (res Result) {
	if id < 0 || int(id) >= numTools {
		return Err(KindUnknownTool, fmt.Sprintf("Unknown tool %s.", id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.tools[id]
	invocationID := ulid.Make().String()
	ctx = skribe.ContextWithAttr(ctx, slog.String("tool", id.String()), slog.String("invocation_id", invocationID))
	input := skribe.Truncate(raw.String(), r.cfg.MaxContentDisplay)
	slog.InfoContext(ctx, "tool received", "input", input)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "tool panicked", "panic", p, "stack", string(debug.Stack()))
			res = Err(KindInternal, fmt.Sprint(p))
		}
		r.record(ctx, history.Record{
			ID:        invocationID,
			SessionID: r.sessionID,
			Tool:      id.String(),
			Input:     input,
			Result:    res.String(),
			IsError:   res.IsErr(),
			Started:   start,
			Duration:  time.Since(start),
		})
	}()

	args := toolargs.Extract(b.spec, raw)
	if msg := args.Err(); msg != "" {
		slog.WarnContext(ctx, "argument extraction failed", "err", msg)
	}
	if missing, ok := args.Missing(b.required...); ok {
		slog.InfoContext(ctx, "tool rejected", "missing", missing)
		return Err(KindInput, fmt.Sprintf("Missing %s parameter.", missing))
	}

	status, err := b.run(ctx, r.ops, args)
	if err != nil {
		slog.InfoContext(ctx, "tool failed", "err", err, "duration", time.Since(start))
		return Err(KindCollaborator, r.cfg.Redact(err.Error()))
	}
	slog.InfoContext(ctx, "tool done", "duration", time.Since(start))
	return Ok(status)
}

// InvokeByName is Invoke for a tool named by the model.
func (r *Registry) InvokeByName(ctx context.Context, name string, raw toolargs.Raw) Result {
	id, ok := ParseToolID(name)
	if !ok {
		slog.WarnContext(ctx, "unknown tool", "tool", name)
		return Err(KindUnknownTool, fmt.Sprintf("Unknown tool %s.", name))
	}
	return r.Invoke(ctx, id, raw)
}

// Call decodes a JSON tool input and returns the display string.
// Input that is not valid JSON is treated as free text.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) string {
	raw, err := toolargs.FromJSON(input)
	if err != nil {
		raw = toolargs.Text(string(input))
	}
	return r.InvokeByName(ctx, name, raw).String()
}

// Extract returns the arguments a call of tool name with input would
// receive, without running it.
func (r *Registry) Extract(name string, input json.RawMessage) (toolargs.Args, bool) {
	id, ok := ParseToolID(name)
	if !ok {
		return nil, false
	}
	raw, err := toolargs.FromJSON(input)
	if err != nil {
		raw = toolargs.Text(string(input))
	}
	return toolargs.Extract(r.tools[id].spec, raw), true
}

func (r *Registry) record(ctx context.Context, rec history.Record) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.WarnContext(ctx, "failed to record invocation", "err", err)
	}
}

// Info describes one tool for transports.
type Info struct {
	ID          ToolID   `json:"-"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
	Required    []string `json:"required"`
	Bools       []string `json:"bools,omitempty"`
}

// Tools describes every tool in ToolID order.
func (r *Registry) Tools() []Info {
	infos := make([]Info, 0, numTools)
	for _, id := range AllTools() {
		b := r.tools[id]
		infos = append(infos, Info{
			ID:          id,
			Name:        id.String(),
			Description: b.description,
			Params:      slices.Clone(b.spec.Params),
			Required:    slices.Clone(b.required),
			Bools:       slices.Clone(b.spec.Bools),
		})
	}
	return infos
}

// ParamDoc describes parameter name for schemas.
func ParamDoc(name string) string {
	return paramDocs[name]
}
