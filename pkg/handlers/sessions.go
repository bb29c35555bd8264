package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// CreateSessionRequest names a new, empty session.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// SessionsResponse lists sessions, most recently active first.
type SessionsResponse struct {
	Sessions []*models.ChatSession `json:"sessions"`
}

// MessagesResponse lists a session's messages oldest first.
type MessagesResponse struct {
	SessionID string                `json:"session_id"`
	Messages  []*models.ChatMessage `json:"messages"`
}

// SessionHandler manages persisted chat sessions.
type SessionHandler struct {
	chat   services.ChatService
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(chat services.ChatService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		chat:   chat,
		logger: logger.Named("session-handler"),
	}
}

// RegisterRoutes registers the session handler's routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux, requireAuth func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/sessions", requireAuth(h.List))
	mux.HandleFunc("POST /api/sessions", requireAuth(h.Create))
	mux.HandleFunc("GET /api/sessions/{id}/messages", requireAuth(h.Messages))
	mux.HandleFunc("DELETE /api/sessions/{id}", requireAuth(h.Delete))
}

// List handles GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chat.ListSessions(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if sessions == nil {
		sessions = []*models.ChatSession{}
	}
	if err := WriteJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, h.logger) {
		return
	}

	session, err := h.chat.CreateSession(r.Context(), req.Title)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, session); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Messages handles GET /api/sessions/{id}/messages
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	messages, err := h.chat.Messages(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}
	response := MessagesResponse{SessionID: sessionID.String(), Messages: messages}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.chat.DeleteSession(r.Context(), sessionID); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Session deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
