// Package skribe defines gitagent-wide logging types and functions.
//
// Logging happens via slog. Attributes added to a context with ContextWithAttr
// are attached to every record logged with that context by a handler wrapped
// in AttrsWrap.
package skribe

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

type attrsKey struct{}

var secretEnv = []string{"GITHUB_TOKEN", "GH_TOKEN", "OPENAI_API_KEY"}

// Redact masks secrets in environment entries.
func Redact(arr []string) []string {
	ret := []string{}
	for _, s := range arr {
		k, _, ok := strings.Cut(s, "=")
		if ok && slices.Contains(secretEnv, k) {
			ret = append(ret, k+"=[REDACTED]")
		} else {
			ret = append(ret, RedactURL(s))
		}
	}
	return ret
}

var credentialedURL = regexp.MustCompile(`(https?://[^:/@\s]+):[^@\s]+@`)

// RedactURL masks the password of every credentialed URL in s.
func RedactURL(s string) string {
	return credentialedURL.ReplaceAllString(s, "$1:[REDACTED]@")
}

// Truncate shortens s to at most n bytes for log echoes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

func ContextWithAttr(ctx context.Context, add ...slog.Attr) context.Context {
	attrs := slices.Clone(Attrs(ctx))
	attrs = append(attrs, add...)
	return context.WithValue(ctx, attrsKey{}, attrs)
}

func Attrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

func AttrsWrap(h slog.Handler) slog.Handler {
	return &augmentHandler{Handler: h}
}

type augmentHandler struct {
	slog.Handler
}

func (h *augmentHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := Attrs(ctx)
	r.AddAttrs(attrs...)
	return h.Handler.Handle(ctx, r)
}

func (h *augmentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &augmentHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *augmentHandler) WithGroup(name string) slog.Handler {
	return &augmentHandler{Handler: h.Handler.WithGroup(name)}
}
