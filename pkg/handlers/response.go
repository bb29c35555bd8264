package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// ApiResponse is the envelope for JSON responses without a dedicated type.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// writeServiceError maps a service error to a status code and error code.
// *llm.Error messages are written as is; they never carry provider text.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"

	var llmErr *llm.Error
	switch {
	case errors.Is(err, apperrors.ErrUnknownModel):
		status, code, message = http.StatusBadRequest, "unknown_model", err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "invalid_input", err.Error()
	case errors.As(err, &llmErr):
		status, code = modelErrorStatus(llmErr.Type)
		message = "Model request failed: " + llmErr.Message
		if llmErr.Model != "" {
			message = fmt.Sprintf("Model %s failed: %s", llmErr.Model, llmErr.Message)
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

func modelErrorStatus(t llm.ErrorType) (int, string) {
	switch t {
	case llm.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, "model_timeout"
	case llm.ErrorTypeRateLimited:
		return http.StatusTooManyRequests, "model_rate_limited"
	case llm.ErrorTypeAuth:
		return http.StatusBadGateway, "model_auth_failed"
	default:
		return http.StatusBadGateway, "model_unavailable"
	}
}
