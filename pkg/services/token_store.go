package services

import (
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/audit"
)

// DefaultTokenTTL is how long an issued bearer token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// Token is an opaque bearer credential.
type Token struct {
	Value     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore issues and validates bearer tokens. Implementations must be
// safe for concurrent use.
type TokenStore interface {
	// Issue creates a new token for email and discards expired ones.
	Issue(email string) (Token, error)
	// Validate returns the email a live token was issued to.
	// Expired tokens are removed and reported as invalid.
	Validate(token string) (string, bool)
	// Revoke invalidates token. Unknown tokens are ignored.
	Revoke(token string)
}

type tokenEntry struct {
	email     string
	expiresAt time.Time
}

type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryTokenStore creates an in-process token store. A non-positive ttl
// uses DefaultTokenTTL.
func NewMemoryTokenStore(ttl time.Duration) TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &memoryTokenStore{
		tokens: make(map[string]tokenEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *memoryTokenStore) Issue(email string) (Token, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Token{}, err
	}
	token := Token{
		Value:     id.String(),
		Email:     email,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sweepLocked()
	s.tokens[token.Value] = tokenEntry{email: email, expiresAt: token.ExpiresAt}
	s.mu.Unlock()

	return token, nil
}

// sweepLocked drops expired entries so tokens that are never presented
// again do not accumulate. Callers hold s.mu.
func (s *memoryTokenStore) sweepLocked() {
	now := s.now()
	for value, entry := range s.tokens {
		if !now.Before(entry.expiresAt) {
			delete(s.tokens, value)
		}
	}
}

func (s *memoryTokenStore) Validate(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.tokens, token)
		return "", false
	}
	return entry.email, true
}

func (s *memoryTokenStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

var _ TokenStore = (*memoryTokenStore)(nil)

// AuthService checks the configured login and manages the caller's token.
type AuthService interface {
	// Enabled reports whether credentials are configured.
	Enabled() bool
	// Login returns a fresh token when email and password match.
	Login(email, password string) (Token, error)
	// Logout revokes token.
	Logout(token string)
	// Verify returns the email behind a live token.
	Verify(token string) (string, bool)
}

type authService struct {
	email    string
	password string
	tokens   TokenStore
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewAuthService creates an AuthService over a single configured account.
// Empty credentials disable authentication.
func NewAuthService(email, password string, tokens TokenStore, logger *zap.Logger) AuthService {
	return &authService{
		email:    email,
		password: password,
		tokens:   tokens,
		auditor:  audit.NewSecurityAuditor(logger),
		logger:   logger.Named("auth"),
	}
}

func (s *authService) Enabled() bool {
	return s.email != "" && s.password != ""
}

func (s *authService) Login(email, password string) (Token, error) {
	if !s.Enabled() {
		return Token{}, apperrors.ErrAuthNotEnabled
	}

	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(email))), []byte(strings.ToLower(s.email))) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !emailOK || !passwordOK {
		s.auditor.LogLoginFailed(email)
		return Token{}, apperrors.ErrInvalidLogin
	}

	token, err := s.tokens.Issue(s.email)
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("Login succeeded", zap.String("email", s.email))
	return token, nil
}

func (s *authService) Logout(token string) {
	s.tokens.Revoke(token)
}

func (s *authService) Verify(token string) (string, bool) {
	return s.tokens.Validate(token)
}

var _ AuthService = (*authService)(nil)
