package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// --- Request Types ---

// ChatRequest is one question in a chat session.
type ChatRequest struct {
	Message string `json:"message"`
	// SessionID is empty to start a new session.
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
	// History replaces the stored history when present.
	History []HistoryMessage `json:"history,omitempty"`
}

// HistoryMessage is one prior turn supplied by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response Types ---

// ChatResponse is the answer to one question.
type ChatResponse struct {
	SessionID  string                  `json:"session_id"`
	Kind       services.AnswerKind     `json:"kind"`
	Message    string                  `json:"message"`
	SQL        string                  `json:"sql,omitempty"`
	Columns    []datasource.ColumnInfo `json:"columns,omitempty"`
	Data       []map[string]any        `json:"data,omitempty"`
	RowCount   int                     `json:"row_count"`
	TotalCount *int                    `json:"total_count,omitempty"`
	HasMore    bool                    `json:"has_more"`
	Error      string                  `json:"error,omitempty"`
	Model      string                  `json:"model,omitempty"`
	Blocked    bool                    `json:"blocked,omitempty"`
}

// --- Handler ---

// ChatHandler answers questions inside chat sessions.
type ChatHandler struct {
	chat   services.ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger.Named("chat-handler"),
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, requireAuth func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/chat", requireAuth(h.Chat))
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_message", "message is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sessionID, ok := parseOptionalSessionID(w, req.SessionID, h.logger)
	if !ok {
		return
	}

	history, ok := h.toHistory(w, req.History)
	if !ok {
		return
	}

	result, err := h.chat.Chat(r.Context(), services.ChatRequest{
		SessionID: sessionID,
		Message:   req.Message,
		ModelID:   req.Model,
		History:   history,
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	answer := result.Answer
	response := ChatResponse{
		SessionID:  result.SessionID.String(),
		Kind:       answer.Kind,
		Message:    answer.Message,
		SQL:        answer.SQL,
		Columns:    answer.Columns,
		Data:       jsonutil.InterchangeRows(answer.Rows),
		RowCount:   len(answer.Rows),
		TotalCount: answer.TotalCount,
		HasMore:    answer.HasMore,
		Error:      answer.Error,
		Model:      answer.ModelID,
		Blocked:    answer.Blocked,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// toHistory converts client history. A nil slice means "use stored history".
func (h *ChatHandler) toHistory(w http.ResponseWriter, in []HistoryMessage) ([]llm.Message, bool) {
	if in == nil {
		return nil, true
	}
	out := make([]llm.Message, 0, len(in))
	for _, m := range in {
		role := llm.Role(strings.ToLower(m.Role))
		if role != llm.RoleUser && role != llm.RoleAssistant {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_history", "history roles must be user or assistant"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return nil, false
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out, true
}
