package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// LoginRequest carries the configured account's credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse returns a bearer token for subsequent requests.
type LoginResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyResponse reports the caller's authentication state.
type VerifyResponse struct {
	Authenticated bool   `json:"authenticated"`
	AuthEnabled   bool   `json:"auth_enabled"`
	Email         string `json:"email,omitempty"`
}

// AuthHandler issues and revokes bearer tokens.
type AuthHandler struct {
	auth   services.AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.Named("auth-handler"),
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/verify", h.Verify)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		status, code := http.StatusInternalServerError, "login_failed"
		switch {
		case errors.Is(err, apperrors.ErrInvalidLogin):
			status, code = http.StatusUnauthorized, "invalid_credentials"
		case errors.Is(err, apperrors.ErrAuthNotEnabled):
			status, code = http.StatusBadRequest, "auth_disabled"
		default:
			h.logger.Error("Failed to issue token", zap.Error(err))
		}
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := LoginResponse{Token: token.Value, Email: token.Email, ExpiresAt: token.ExpiresAt}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Logout handles POST /api/auth/logout. Unknown tokens are ignored.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.BearerToken(r); token != "" {
		h.auth.Logout(token)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Logged out"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Verify handles GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Enabled() {
		if err := WriteJSON(w, http.StatusOK, VerifyResponse{Authenticated: true}); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}

	email, ok := h.auth.Verify(middleware.BearerToken(r))
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, VerifyResponse{Authenticated: true, AuthEnabled: true, Email: email}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
