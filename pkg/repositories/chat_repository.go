package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/database"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// ChatRepository provides data access for chat sessions and messages.
type ChatRepository interface {
	CreateSession(ctx context.Context, title string) (*models.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	// TouchSession bumps updated_at. Returns apperrors.ErrNotFound for an unknown session.
	TouchSession(ctx context.Context, id uuid.UUID) error
	ListSessions(ctx context.Context, limit int) ([]*models.ChatSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	AddMessage(ctx context.Context, msg *models.ChatMessage) error
	// ListMessages returns a session's messages oldest first.
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error)
	// RecentMessages returns the newest limit messages, oldest first.
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

type chatRepository struct {
	db *database.DB
}

// NewChatRepository creates a ChatRepository over the metadata store.
func NewChatRepository(db *database.DB) ChatRepository {
	return &chatRepository{db: db}
}

var _ ChatRepository = (*chatRepository)(nil)

func (r *chatRepository) CreateSession(ctx context.Context, title string) (*models.ChatSession, error) {
	now := time.Now().UTC()
	session := &models.ChatSession{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO chat_sessions (id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, session.ID, session.Title, session.CreatedAt, session.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

func (r *chatRepository) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	query := `
		SELECT s.id, s.title, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)
		FROM chat_sessions s
		WHERE s.id = $1`

	var s models.ChatSession
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &s, nil
}

func (r *chatRepository) TouchSession(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch chat session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *chatRepository) ListSessions(ctx context.Context, limit int) ([]*models.ChatSession, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT s.id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.updated_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.ChatSession, 0)
	for rows.Next() {
		var s models.ChatSession
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat sessions: %w", err)
	}
	return sessions, nil
}

func (r *chatRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *chatRepository) AddMessage(ctx context.Context, msg *models.ChatMessage) error {
	if !models.IsValidChatRole(msg.Role) {
		return fmt.Errorf("%w: chat role %q", apperrors.ErrInvalidInput, msg.Role)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now().UTC()

	// A nil RawMessage must reach Postgres as NULL, not as an empty string.
	var data any
	if len(msg.Data) > 0 {
		data = []byte(msg.Data)
	}

	query := `
		INSERT INTO chat_messages (id, session_id, role, content, sql_query, data, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.SessionID,
		string(msg.Role),
		msg.Content,
		msg.SQLQuery,
		data,
		msg.Error,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add chat message: %w", err)
	}
	return nil
}

func (r *chatRepository) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, session_id, role, content, sql_query, data, error, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return scanMessages(rows)
}

func (r *chatRepository) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, session_id, role, content, sql_query, data, error, created_at
		FROM (
			SELECT * FROM chat_messages
			WHERE session_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent chat messages: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]*models.ChatMessage, error) {
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		var role string
		var data []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.SQLQuery, &data, &m.Error, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Role = models.ChatRole(role)
		if len(data) > 0 {
			m.Data = data
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}
	return messages, nil
}
