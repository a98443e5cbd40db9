// Package server is a local bridge to the chat client: a REST view of the
// session store and a websocket feed of its changes, so another front end
// can drive the same sessions the terminal UI uses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/deepai/deepai-client/pkg/runner"
	"github.com/deepai/deepai-client/pkg/store"
)

// Server serves the bridge API.
type Server struct {
	store  *store.Store
	runner *runner.Runner

	mu  sync.Mutex
	srv *http.Server
}

func New(s *store.Store, r *runner.Runner) *Server {
	return &Server{store: s, runner: r}
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("PUT /api/mode", s.handleSetMode)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{key}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{index}", s.handleDeleteSession)

	// Session Actions
	mux.HandleFunc("POST /api/sessions/{key}/send", s.handleSend)
	mux.HandleFunc("POST /api/sessions/{key}/regenerate", s.handleRegenerate)
	mux.HandleFunc("POST /api/cancel", s.handleCancel)

	// WebSocket
	mux.HandleFunc("/api/events", s.handleEvents)

	return s.corsMiddleware(mux)
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	slog.Info("Starting bridge server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The bridge listens on loopback only; any local origin may call it.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("API Error", "status", status, "error", err)
	} else {
		slog.Debug("API Error", "status", status, "error", err)
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
