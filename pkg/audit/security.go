// Package audit logs security-relevant events in structured JSON for SIEM
// consumption: blocked write requests, generated SQL the safety gate
// rejected, and failed logins.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/middleware"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventWriteIntentBlocked is logged when a question asks for a write
	// and is refused before any model call.
	EventWriteIntentBlocked SecurityEventType = "write_intent_blocked"
	// EventUnsafeSQLRejected is logged when generated SQL fails verification.
	EventUnsafeSQLRejected SecurityEventType = "unsafe_sql_rejected"
	// EventLoginFailed is logged for rejected credentials.
	EventLoginFailed SecurityEventType = "login_failed"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	SessionID string            `json:"session_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"`
}

// SQLRejectionDetails describes generated SQL the safety gate refused.
type SQLRejectionDetails struct {
	Reason  string `json:"reason"`
	Keyword string `json:"keyword,omitempty"`
	// SQL is truncated and scrubbed of secrets.
	SQL string `json:"sql"`
	// Injection is set when libinjection matched a string literal.
	Injection bool `json:"injection"`
}

// SecurityAuditor logs security events under the "security_audit" logger name.
type SecurityAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSecurityAuditor creates a SecurityAuditor. If logger is nil, a no-op
// logger is used.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit"), now: time.Now}
}

// LogWriteIntent records a question refused for asking to modify data.
func (a *SecurityAuditor) LogWriteIntent(ctx context.Context, sessionID, reason, keyword string) {
	a.log(ctx, SecurityEvent{
		EventType: EventWriteIntentBlocked,
		SessionID: sessionID,
		Details:   map[string]string{"reason": reason, "keyword": keyword},
		Severity:  SeverityInfo,
	}, "Write request blocked")
}

// LogSQLRejected records generated SQL the safety gate refused. Injection
// matches are critical; other rejections are warnings.
func (a *SecurityAuditor) LogSQLRejected(ctx context.Context, sessionID string, details SQLRejectionDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	severity := SeverityWarning
	if details.Injection {
		severity = SeverityCritical
	}
	a.log(ctx, SecurityEvent{
		EventType: EventUnsafeSQLRejected,
		SessionID: sessionID,
		Details:   details,
		Severity:  severity,
	}, "Generated SQL rejected")
}

// LogLoginFailed records rejected credentials for email.
func (a *SecurityAuditor) LogLoginFailed(email string) {
	a.log(context.Background(), SecurityEvent{
		EventType: EventLoginFailed,
		Email:     email,
		Details:   map[string]string{},
		Severity:  SeverityWarning,
	}, "Login failed")
}

func (a *SecurityAuditor) log(ctx context.Context, event SecurityEvent, msg string) {
	event.Timestamp = a.now().UTC()
	if event.Email == "" {
		event.Email, _ = middleware.EmailFromContext(ctx)
	}

	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("session_id", event.SessionID),
		zap.String("email", event.Email),
		zap.String("severity", event.Severity),
	}
	switch event.Severity {
	case SeverityCritical:
		a.logger.Error(msg, fields...)
	case SeverityWarning:
		a.logger.Warn(msg, fields...)
	default:
		a.logger.Info(msg, fields...)
	}
}
