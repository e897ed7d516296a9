// Package server exposes the tool registry over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"gitagent.dev/agenttool"
	"gitagent.dev/config"
	"gitagent.dev/fileops"
	"gitagent.dev/history"
	"gitagent.dev/skribe"
	"gitagent.dev/toolargs"
)

// maxBodyBytes bounds a tool call body. File contents travel in it.
const maxBodyBytes = 10 << 20

// HistoryLister serves GET /history.
type HistoryLister interface {
	List(ctx context.Context, f history.Filter) ([]history.Record, error)
}

type Server struct {
	cfg     *config.Config
	reg     *agenttool.Registry
	version string

	// APIKey, when set, is required on every route but /healthz,
	// as X-API-Key or a bearer token.
	APIKey string
	// History, when set, serves GET /history.
	History HistoryLister
}

func New(cfg *config.Config, reg *agenttool.Registry, version string) *Server {
	return &Server{cfg: cfg, reg: reg, version: version}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Group(func(api chi.Router) {
		api.Use(requireKey(s.APIKey))
		api.Get("/tools", s.handleListTools)
		api.Post("/tools/{name}", s.handleCallTool)
		api.Get("/tree", s.handleTree)
		api.Get("/history", s.handleHistory)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	slog.InfoContext(ctx, "http server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type toolInfo struct {
	agenttool.Info
	InputSchema json.RawMessage `json:"input_schema"`
}

type callResponse struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
	Error  bool   `json:"error"`
	Kind   string `json:"kind,omitempty"`
}

type historyEntry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Tool       string    `json:"tool"`
	Input      string    `json:"input"`
	Result     string    `json:"result"`
	Error      bool      `json:"error"`
	Started    time.Time `json:"started"`
	DurationMS int64     `json:"duration_ms"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	infos := s.reg.Tools()
	out := make([]toolInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, toolInfo{Info: info, InputSchema: info.InputSchema()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, ok := agenttool.ParseToolID(name)
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown_tool", "Unknown tool "+name+".")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, http.StatusRequestEntityTooLarge, "bad_body", "failed to read request body: "+err.Error())
		return
	}
	raw, err := toolargs.FromJSON(body)
	if err != nil {
		raw = toolargs.Text(string(body))
	}

	res := s.reg.Invoke(r.Context(), id, raw)
	resp := callResponse{Tool: id.String(), Result: res.String(), Error: res.IsErr()}
	if res.IsErr() {
		resp.Kind = res.Kind.String()
	}
	// Failures are tool results, not transport errors.
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := fileops.Tree(r.Context(), s.cfg)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "tree_failed", s.cfg.Redact(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeErr(w, http.StatusNotFound, "history_disabled", "invocation history is not configured")
		return
	}
	q := r.URL.Query()
	f := history.Filter{SessionID: q.Get("session"), Tool: q.Get("tool")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeErr(w, http.StatusBadRequest, "bad_limit", "Invalid 'limit' parameter")
			return
		}
		f.Limit = n
	}
	recs, err := s.History.List(r.Context(), f)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	out := make([]historyEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, historyEntry{
			ID:         rec.ID,
			SessionID:  rec.SessionID,
			Tool:       rec.Tool,
			Input:      rec.Input,
			Result:     rec.Result,
			Error:      rec.IsError,
			Started:    rec.Started,
			DurationMS: rec.Duration.Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// requestID tags each request with an id, taken from X-Request-Id when the client sent one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := skribe.ContextWithAttr(r.Context(), slog.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func requireKey(key string) func(http.Handler) http.Handler {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidate := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if candidate == "" {
				auth := strings.TrimSpace(r.Header.Get("Authorization"))
				if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
					candidate = strings.TrimSpace(auth[len("bearer "):])
				}
			}
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) != 1 {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

func writeErr(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, map[string]apiError{"error": {Code: errCode, Message: message}})
}
