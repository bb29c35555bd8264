package llm

import (
	"context"

	"go.uber.org/zap"
)

// Purpose names why a completion was requested.
type Purpose string

const (
	PurposeSQLGeneration Purpose = "sql_generation"
	PurposeAnalysis      Purpose = "analysis"
)

// CallInfo tags a completion for logging.
type CallInfo struct {
	SessionID string
	Purpose   Purpose
}

type callInfoKey struct{}

// WithSessionContext tags backend calls made with ctx with the chat session
// and purpose. An empty sessionID keeps any session already attached.
func WithSessionContext(ctx context.Context, sessionID string, purpose Purpose) context.Context {
	info, _ := CallInfoFrom(ctx)
	if sessionID != "" {
		info.SessionID = sessionID
	}
	info.Purpose = purpose
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the tags attached by WithSessionContext.
func CallInfoFrom(ctx context.Context) (CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey{}).(CallInfo)
	return info, ok
}

// contextFields renders the attached tags as zap fields.
func contextFields(ctx context.Context) []zap.Field {
	info, ok := CallInfoFrom(ctx)
	if !ok {
		return nil
	}
	fields := []zap.Field{zap.String("purpose", string(info.Purpose))}
	if info.SessionID != "" {
		fields = append(fields, zap.String("session_id", info.SessionID))
	}
	return fields
}
