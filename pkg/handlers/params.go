package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseSessionID extracts and validates the session ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseSessionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r.PathValue("id"), "invalid_session_id", "Invalid session ID format", logger)
}

// parseOptionalSessionID parses a session ID from a body or query value.
// An empty value yields uuid.Nil.
func parseOptionalSessionID(w http.ResponseWriter, value string, logger *zap.Logger) (uuid.UUID, bool) {
	if value == "" {
		return uuid.Nil, true
	}
	return parseUUID(w, value, "invalid_session_id", "Invalid session ID format", logger)
}

func parseUUID(w http.ResponseWriter, value, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
