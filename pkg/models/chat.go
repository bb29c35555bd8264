package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatRole represents the role of a chat message sender.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// IsValidChatRole checks if the given role is valid.
func IsValidChatRole(r ChatRole) bool {
	return r == ChatRoleUser || r == ChatRoleAssistant
}

// ChatSession is one persisted conversation.
type ChatSession struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ChatMessage is one turn of a session. Assistant messages carry the SQL
// that produced their answer and the returned rows in interchange form.
type ChatMessage struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	Role      ChatRole        `json:"role"`
	Content   string          `json:"content"`
	SQLQuery  *string         `json:"sql_query,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MaxTitleRunes bounds a session title derived from its first message.
const MaxTitleRunes = 50

// DefaultSessionTitle names a session created without a message.
const DefaultSessionTitle = "New Chat"

// SessionTitle derives a title from the first user message.
func SessionTitle(message string) string {
	runes := []rune(message)
	if len(runes) == 0 {
		return DefaultSessionTitle
	}
	if len(runes) > MaxTitleRunes {
		runes = runes[:MaxTitleRunes]
	}
	return string(runes)
}

// HasData reports whether the message carries a non-empty result set.
func (m *ChatMessage) HasData() bool {
	switch string(m.Data) {
	case "", "null", "[]":
		return false
	}
	return true
}
