package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"relayd/internal/domain"
	"relayd/internal/usecase"
)

// tokenHeader carries the shared secret for protected routes.
const tokenHeader = "X-Relay-Token"

const maxBodySize = 1 << 20 // 1 MiB

// HandlerDeps bundles the services the HTTP handlers call into.
type HandlerDeps struct {
	Registry   *usecase.Registry
	Queue      *usecase.Queue
	Dispatcher *usecase.Dispatcher
}

type registerRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type registerResponse struct {
	Status string `json:"status"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

type relayRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type pollRequest struct {
	Agent string `json:"agent"`
}

type pollResponse struct {
	Messages []string `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusForError maps domain errors to HTTP status codes: client mistakes
// are 400, bad credentials 401, remote delivery problems 502, and anything
// else (storage included) 500.
func statusForError(err error) int {
	switch {
	case domain.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrDeliveryFailed), errors.Is(err, domain.ErrDeliveryTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError renders err for the client. Internal store errors are not
// echoed verbatim; the error code still identifies the failure class.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "storage unavailable"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: string(domain.ErrorCodeOf(err))})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// authorize checks the shared-secret header. A nil authenticator leaves the
// route open.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.auth == nil {
		return true
	}
	if _, err := s.auth.Authenticate(r.Header.Get(tokenHeader)); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

// handleRegister serves POST (register) and DELETE (deregister) for
// /api/v1/register. Both require the shared secret when auth is configured;
// relay and poll stay open so agents can exchange traffic without sharing
// the operator secret.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req registerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		entry, err := s.deps.Registry.Register(r.Context(), req.Name, req.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, registerResponse{
			Status: "registered",
			Name:   entry.Name,
			URL:    entry.CallbackURL,
		})

	case http.MethodDelete:
		name := r.URL.Query().Get("name")
		if err := s.deps.Registry.Deregister(r.Context(), name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deregistered", "name": name})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRelay serves POST /api/v1/relay.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req relayRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.metrics.RelayCalls.Add(1)
	outcome, err := s.deps.Dispatcher.Relay(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handlePoll serves POST /api/v1/poll: atomically drains and returns all
// pending messages for one agent.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Agent == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "agent is required",
			Code:  string(domain.CodeInvalidAgentName),
		})
		return
	}

	messages, err := s.deps.Queue.Drain(r.Context(), req.Agent)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []string{}
	}
	writeJSON(w, http.StatusOK, pollResponse{Messages: messages})
}

// handleAgents serves GET /api/v1/agents: the full registry listing.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) {
		return
	}

	entries, err := s.deps.Registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.RegistryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": entries})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "relayd is live (mode: %s)\n", s.deps.Dispatcher.Mode())
}

func (s *Server) handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
