package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/deepai/deepai-client/pkg/runner"
	"github.com/deepai/deepai-client/pkg/store"
)

// --- State ---

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.store.State())
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode store.AiMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if !req.Mode.Valid() {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("unknown mode %q", req.Mode))
		return
	}
	s.store.SetMode(req.Mode)
	s.jsonResponse(w, http.StatusOK, map[string]store.AiMode{"mode": req.Mode})
}

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if mode := store.AiMode(r.URL.Query().Get("mode")); mode != "" {
		s.jsonResponse(w, http.StatusOK, s.store.HistoryByMode(mode))
		return
	}
	s.jsonResponse(w, http.StatusOK, s.store.History())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r.PathValue("key"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.store.Session(key)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, fmt.Errorf("session %d not found", key))
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"session":  sess,
		"messages": s.store.MessagesOf(key),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("invalid session index %q", r.PathValue("index")))
		return
	}
	s.store.DeleteSession(index)
	w.WriteHeader(http.StatusNoContent)
}

// --- Exchanges ---

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r.PathValue("key"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("prompt is required"))
		return
	}

	s.submit(w, runner.Job{Kind: runner.KindSend, Key: key, Prompt: req.Prompt, Model: req.Model})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r.PathValue("key"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}

	s.submit(w, runner.Job{Kind: runner.KindRegenerate, Key: key, Index: req.Index})
}

func (s *Server) submit(w http.ResponseWriter, job runner.Job) {
	if err := s.runner.Submit(job); err != nil {
		if errors.Is(err, runner.ErrBusy) {
			s.errorResponse(w, http.StatusConflict, err)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]any{"session": job.Key, "kind": job.Kind})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]bool{"canceled": s.runner.Cancel()})
}

// parseKey accepts 0 as the pending session.
func parseKey(raw string) (store.Key, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid session key %q", raw)
	}
	return store.Key(n), nil
}
