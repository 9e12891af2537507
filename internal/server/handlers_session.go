package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/converse-ai/converse/internal/session"
	"github.com/converse-ai/converse/pkg/types"
)

// SendMessageRequest represents the request body for posting a message.
type SendMessageRequest struct {
	Content     string             `json:"content"`
	Attachments []types.Attachment `json:"attachments,omitempty"`
}

// SessionResponse wraps the session with its live streaming flag.
type SessionResponse struct {
	Session   types.Session `json:"session"`
	IsLoading bool          `json:"isLoading"`
}

// getSession handles GET /session
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.engine.Session()
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "No active session")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess, IsLoading: s.engine.IsLoading()})
}

// createSession handles POST /session
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.engine.NewSession()
	writeJSON(w, http.StatusOK, sess)
}

// loadSession handles POST /session/{sessionID}/load
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.engine.LoadSessionMessages(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Messages())
}

// deleteSession handles DELETE /session/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.engine.DeleteSession(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
		return
	}
	writeSuccess(w)
}

// getMessages handles GET /session/message
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	messages := s.engine.Messages()
	if messages == nil {
		messages = []types.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// sendMessage handles POST /session/message. It blocks until the stream
// terminates; clients follow token progress over /event.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	err := s.engine.SendMessage(r.Context(), req.Content, req.Attachments...)
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	case errors.Is(err, session.ErrSendInProgress):
		writeError(w, http.StatusConflict, ErrCodeBusy, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Messages())
}

// getSummary handles GET /session/summary
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Summary(r.Context())
	if errors.Is(err, session.ErrNoSession) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
