package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// TokenVerifier checks bearer tokens. services.AuthService implements it.
type TokenVerifier interface {
	Enabled() bool
	Verify(token string) (string, bool)
}

type emailKey struct{}

// EmailFromContext returns the email of the authenticated caller.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey{}).(string)
	return email, ok
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireToken rejects requests without a live bearer token. When the
// verifier reports authentication disabled, every request passes.
func RequireToken(verifier TokenVerifier, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Enabled() {
				next(w, r)
				return
			}

			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "Authentication required")
				return
			}
			email, ok := verifier.Verify(token)
			if !ok {
				logger.Debug("Rejected bearer token",
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestIDFromContext(r.Context())))
				unauthorized(w, "Invalid or expired token")
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), emailKey{}, email)))
		}
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="sqlchat"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
