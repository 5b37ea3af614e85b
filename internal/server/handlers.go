package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
	"github.com/pramodthe/enterprise-ai-platform/pkg/orchestrator"
	"github.com/pramodthe/enterprise-ai-platform/pkg/session"
)

const (
	agentCheckTimeout   = 15 * time.Second
	maxConcurrentChecks = 8
)

// AgentStatus is one entry of GET /api/v1/agents.
type AgentStatus struct {
	Name         string   `json:"name"`
	Available    bool     `json:"available"`
	Capabilities []string `json:"capabilities"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeChatRequest reads and validates a chat request body.
func decodeChatRequest(data []byte) (orchestrator.Request, error) {
	var req orchestrator.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return req, errors.New("invalid JSON body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return req, errors.New("message is required")
	}
	return req, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := decodeChatRequest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.process(r.Context(), req))
}

// process runs one chat turn. Dispatch is detached from the caller so a
// client disconnect does not abort agent queries mid-flight.
func (s *Server) process(ctx context.Context, req orchestrator.Request) orchestrator.Response {
	s.inFlight.Add(1)
	defer s.inFlight.Done()

	ctx = tracing.Detach(ctx)
	if req.UserID != "" {
		ctx = tracing.WithUserID(ctx, req.UserID)
	}
	return s.app.Orchestrator.Process(ctx, req)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := session.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.app.Sessions.Get(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrInvalidSessionID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
		writeError(w, http.StatusInternalServerError, "failed to load session")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": s.checkAgents(r.Context())})
}

// checkAgents checks availability and capabilities of every registered agent
// concurrently. Results keep the router's (sorted) order.
func (s *Server) checkAgents(ctx context.Context) []AgentStatus {
	router := s.app.Router
	names := router.Agents()
	statuses := make([]AgentStatus, len(names))

	ctx, cancel := context.WithTimeout(ctx, agentCheckTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i, name := range names {
		statuses[i] = AgentStatus{Name: name, Capabilities: []string{}}
		handle, ok := router.Agent(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			statuses[i].Available = handle.IsAvailable(gctx)
			if caps := handle.Capabilities(gctx); caps != nil {
				statuses[i].Capabilities = caps
			}
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func (s *Server) handleRoutingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Router.Statistics().Snapshot())
}
