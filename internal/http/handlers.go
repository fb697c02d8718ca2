// Package http exposes the JSON API over the orchestration core: session
// creation at the login boundary and turn processing. Rendering a chat UI
// is someone else's job.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"health-companion/internal/core"
	"health-companion/internal/directory"
	"health-companion/internal/fetch"
	"health-companion/internal/session"
	"health-companion/pkg"
)

// Server bundles the dependencies required by the HTTP handlers. It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Store        *session.Store
	Orchestrator *core.Orchestrator
	Directory    *directory.Directory // optional; nil disables patient_ref resolution
	Fetcher      *fetch.Client        // optional; required when Directory is set
	Logger       *zap.Logger

	validate *validator.Validate
}

// NewServer constructs a Server.
func NewServer(store *session.Store, orch *core.Orchestrator, dir *directory.Directory, fetcher *fetch.Client, logger *zap.Logger) *Server {
	return &Server{
		Store:        store,
		Orchestrator: orch,
		Directory:    dir,
		Fetcher:      fetcher,
		Logger:       logger,
		validate:     validator.New(),
	}
}

// ServeHTTP dispatches incoming requests based on the URL path. Minimal
// routing logic is implemented here to keep dependencies light.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/sessions" && r.Method == http.MethodPost:
		s.handleCreateSession(w, r)
	case strings.HasPrefix(path, "/api/sessions/") && strings.HasSuffix(path, "/messages") && r.Method == http.MethodPost:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/sessions/"), "/messages")
		id = strings.TrimSuffix(id, "/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		s.handlePostMessage(w, r, id)
	case strings.HasPrefix(path, "/api/sessions/") && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(path, "/api/sessions/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		s.handleDeleteSession(w, r, id)
	case path == "/healthz" && r.Method == http.MethodGet:
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

// handleCreateSession is the boundary where login and the clinical-data
// fetch hand off into the core: it accepts either an inline raw bundle or a
// patient reference resolved through the directory, reduces the bundle once,
// and returns the session handle.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req pkg.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	bundle := []byte(req.Bundle)
	if len(bundle) == 0 {
		if req.PatientRef == "" {
			s.writeError(w, http.StatusBadRequest, "either patient_ref or bundle is required")
			return
		}
		if s.Directory == nil || s.Fetcher == nil {
			s.writeError(w, http.StatusBadRequest, "patient_ref resolution is not configured")
			return
		}
		patient, err := s.Directory.Lookup(req.PatientRef)
		if err != nil {
			s.writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		bundle, err = s.Fetcher.Bundle(r.Context(), patient.Endpoint)
		if err != nil {
			s.Logger.Error("clinical bundle fetch failed", zap.String("patient_ref", req.PatientRef), zap.Error(err))
			s.writeError(w, http.StatusBadGateway, "could not retrieve health records")
			return
		}
	}

	sess, err := s.Store.Create("", req.PatientRef, bundle)
	if err != nil {
		s.Logger.Error("session creation failed", zap.Error(err))
		s.writeError(w, http.StatusBadRequest, "could not process health records")
		return
	}

	s.Logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.Int("context_bytes", sess.Reduced().Size()))

	s.writeJSON(w, http.StatusCreated, pkg.CreateSessionResponse{
		SessionID: sess.ID,
		Summary:   sess.Reduced().HealthSummary(),
	})
}

// handlePostMessage processes one turn.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req pkg.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "message content is required")
		return
	}

	sess, err := s.Store.Get(sessionID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}

	reply, err := s.Orchestrator.HandleTurn(r.Context(), sess, req.Content)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away mid-turn; nothing to write.
			return
		}
		s.Logger.Error("turn failed", zap.String("session_id", sessionID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not process message")
		return
	}

	traces := reply.ToolTraces
	if traces == nil {
		traces = []pkg.ToolTrace{}
	}
	s.writeJSON(w, http.StatusOK, pkg.ChatResponse{Reply: reply.Text, ToolTraces: traces})
}

// handleDeleteSession destroys a session (logout).
func (s *Server) handleDeleteSession(w http.ResponseWriter, _ *http.Request, sessionID string) {
	s.Store.Delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("response encoding failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, pkg.ErrorResponse{Error: msg})
}
