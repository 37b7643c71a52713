// Package web serves the pull side of the monitor: the current snapshot,
// liveness, per-agent conversation history and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"agentwatch/internal/metrics"
	"agentwatch/internal/model"
	"agentwatch/internal/telemetry"
)

// SnapshotReader returns the latest published snapshot.
type SnapshotReader interface {
	Current() (model.Snapshot, bool)
}

// ConversationReader looks up conversation history for one agent. An empty
// result means no history, not a failure.
type ConversationReader interface {
	Conversation(ctx context.Context, agentID string) []model.ConversationTurn
}

// Server handles the HTTP API
type Server struct {
	state   SnapshotReader
	conv    ConversationReader
	port    int
	version string
	metrics *metrics.Metrics
	relay   http.Handler
	logger  *slog.Logger
	started time.Time

	mu  sync.Mutex
	srv *http.Server
}

type Option func(*Server)

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRelayEndpoint mounts an in-process relay at /relay.
func WithRelayEndpoint(h http.Handler) Option {
	return func(s *Server) { s.relay = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new web server
func NewServer(state SnapshotReader, conv ConversationReader, port int, opts ...Option) *Server {
	s := &Server{
		state:   state,
		conv:    conv,
		port:    port,
		version: "dev",
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /state", "/state", s.handleState)
	s.route(mux, "GET /activity", "/activity", s.handleActivity)
	s.route(mux, "GET /health", "/health", s.handleHealth)
	s.route(mux, "GET /agents/{id}/conversation", "/agents/{id}/conversation", s.handleConversation)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.relay != nil {
		mux.Handle("/relay", s.relay)
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, label string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.metrics != nil {
		handler = s.metrics.RequestTrackingMiddleware(label, handler)
	}
	mux.Handle(pattern, handler)
}

// Start starts the HTTP server and blocks until it stops. It returns nil
// after a graceful Stop.
func (s *Server) Start() error {
	// Bind to localhost for security
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info("starting HTTP API", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) current() model.Snapshot {
	snap, ok := s.state.Current()
	if !ok {
		return model.Snapshot{
			Agents:    []model.Agent{},
			Activity:  []model.ActivityEvent{},
			Providers: []model.ProviderHealth{},
		}
	}
	return snap
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.current())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.current().Activity)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  int64(time.Since(s.started).Seconds()),
	})
}

type conversationResponse struct {
	AgentID string                   `json:"agentId"`
	Turns   []model.ConversationTurn `json:"turns"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp := conversationResponse{AgentID: id, Turns: []model.ConversationTurn{}}
	if s.conv != nil {
		if turns := s.conv.Conversation(r.Context(), id); len(turns) > 0 {
			resp.Turns = turns
		}
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.LogDebug("failed to write response", "error", err)
	}
}
