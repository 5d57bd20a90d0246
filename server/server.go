// Package server exposes the chat agent over HTTP: a buffered endpoint that
// returns the final answer with its projected event log, and a streaming
// endpoint that emits answer text as it is generated.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quorvus/datachat/core"
	"github.com/quorvus/datachat/executor"
	"github.com/quorvus/datachat/logging"
	"github.com/quorvus/datachat/session"
	"github.com/quorvus/datachat/trace"
)

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the buffered endpoint payload. Events carries the
// projected lifecycle log in emission order.
type ChatResponse struct {
	Response  string         `json:"response"`
	SessionID string         `json:"session_id"`
	Events    []trace.Record `json:"events"`
}

// Config holds server configuration.
type Config struct {
	Addr     string
	Store    *session.Store
	Executor *executor.Executor
	Budget   core.ExecutionBudget
	Logger   logging.Logger
}

// Server wires session resolution and executor runs behind the HTTP surface.
type Server struct {
	addr   string
	store  *session.Store
	exec   *executor.Executor
	budget core.ExecutionBudget
	logger logging.Logger
	server *http.Server
}

// New validates the configuration and creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if err := cfg.Budget.Validate(); err != nil {
		cfg.Budget = core.DefaultBudget()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	return &Server{
		addr:   cfg.Addr,
		store:  cfg.Store,
		exec:   cfg.Executor,
		budget: cfg.Budget,
		logger: cfg.Logger,
	}, nil
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/chat/stream", s.handleChatStream)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("http server shutting down")
	return s.server.Shutdown(ctx)
}

// decodeRequest parses and validates the chat body. A false return means the
// response has already been written.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// handleChat runs the executor to completion and always answers 200 once the
// request validates. Agent-level failures are folded into the response text
// with the "Agent error: " prefix alongside whatever events were collected.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	sessionID, mem := s.store.GetOrCreate(req.SessionID)

	events, outcome := s.exec.Run(r.Context(), executor.Request{
		Prompt: req.Prompt,
		Memory: mem,
		Budget: s.budget,
	})

	collector := trace.NewCollector()
	for ev := range events {
		collector.Project(ev)
	}
	out := <-outcome

	text := out.Text
	if out.Err != nil {
		s.logger.Error("chat run failed", "session_id", sessionID, "error", out.Err)
		text = fmt.Sprintf("Agent error: %v", out.Err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ChatResponse{
		Response:  text,
		SessionID: sessionID,
		Events:    collector.Records(),
	}); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

// handleChatStream streams answer text as plain text fragments. The session
// identifier travels in the X-Session-ID header since the body carries only
// text. Failures surface as an "Agent error: " line in the stream.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	sessionID, mem := s.store.GetOrCreate(req.SessionID)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Session-ID", sessionID)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	chunks, errCh := s.exec.Stream(r.Context(), executor.Request{
		Prompt: req.Prompt,
		Memory: mem,
		Budget: s.budget,
	})

	for chunk := range chunks {
		if _, err := fmt.Fprint(w, chunk); err != nil {
			// Client went away; the request context cancels the run.
			return
		}
		flush()
	}
	if err := <-errCh; err != nil {
		s.logger.Error("stream run failed", "session_id", sessionID, "error", err)
		fmt.Fprintf(w, "Agent error: %v", err)
		flush()
	}
}
