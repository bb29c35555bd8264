package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/repositories"
)

// apologyFmt is persisted when the pipeline fails outright.
const apologyFmt = "Sorry, I encountered an error: %s"

// Answerer answers one question. *Pipeline implements it.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (*Answer, error)
}

// ChatRequest is one user message in a persisted conversation.
type ChatRequest struct {
	// SessionID is uuid.Nil to start a new session.
	SessionID uuid.UUID
	Message   string
	ModelID   string
	// History overrides the stored history when non-nil.
	History []llm.Message
}

// ChatResult is the answer plus the session it was stored in.
type ChatResult struct {
	SessionID uuid.UUID
	Answer    *Answer
}

// ChatService runs questions inside persisted chat sessions.
type ChatService interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	CreateSession(ctx context.Context, title string) (*models.ChatSession, error)
	ListSessions(ctx context.Context) ([]*models.ChatSession, error)
	Messages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error)
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

type chatService struct {
	repo     repositories.ChatRepository
	answerer Answerer
	scope    TableScope
	logger   *zap.Logger
}

// NewChatService creates a ChatService. scope may be nil.
func NewChatService(repo repositories.ChatRepository, answerer Answerer, scope TableScope, logger *zap.Logger) ChatService {
	return &chatService{
		repo:     repo,
		answerer: answerer,
		scope:    scope,
		logger:   logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	sessionID, err := s.openSession(ctx, req)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.RecentMessages(ctx, sessionID, prompts.MaxHistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	history := req.History
	if history == nil {
		history = toHistory(recent)
	}
	prior := priorResult(recent, s.logger)

	if err := s.repo.AddMessage(ctx, &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.ChatRoleUser,
		Content:   req.Message,
	}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	answer, err := s.answerer.Answer(ctx, AnswerRequest{
		Message:   req.Message,
		History:   history,
		ModelID:   req.ModelID,
		SessionID: sessionID.String(),
		Prior:     prior,
	})
	if err != nil {
		s.logger.Error("Question failed",
			zap.String("session_id", sessionID.String()),
			zap.String("error", logging.SanitizeError(err)))
		errText := err.Error()
		if saveErr := s.repo.AddMessage(ctx, &models.ChatMessage{
			SessionID: sessionID,
			Role:      models.ChatRoleAssistant,
			Content:   fmt.Sprintf(apologyFmt, errText),
			Error:     &errText,
		}); saveErr != nil {
			s.logger.Error("Failed to save apology message", zap.Error(saveErr))
		}
		return nil, err
	}

	reply, err := assistantMessage(sessionID, answer)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	return &ChatResult{SessionID: sessionID, Answer: answer}, nil
}

// openSession creates a session for a first message or touches an existing one.
func (s *chatService) openSession(ctx context.Context, req ChatRequest) (uuid.UUID, error) {
	if req.SessionID == uuid.Nil {
		session, err := s.repo.CreateSession(ctx, models.SessionTitle(req.Message))
		if err != nil {
			return uuid.Nil, err
		}
		s.logger.Info("Created chat session", zap.String("session_id", session.ID.String()))
		return session.ID, nil
	}
	if err := s.repo.TouchSession(ctx, req.SessionID); err != nil {
		return uuid.Nil, err
	}
	return req.SessionID, nil
}

func (s *chatService) CreateSession(ctx context.Context, title string) (*models.ChatSession, error) {
	return s.repo.CreateSession(ctx, models.SessionTitle(title))
}

func (s *chatService) ListSessions(ctx context.Context) ([]*models.ChatSession, error) {
	return s.repo.ListSessions(ctx, 0)
}

func (s *chatService) Messages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, sessionID)
}

func (s *chatService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if s.scope != nil {
		s.scope.Clear(sessionID.String())
	}
	return nil
}

// assistantMessage records an answer. INVALID outcomes carry no SQL.
func assistantMessage(sessionID uuid.UUID, answer *Answer) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.ChatRoleAssistant,
		Content:   answer.Message,
	}
	if answer.SQL != "" && answer.Kind != KindInvalid {
		sqlQuery := answer.SQL
		msg.SQLQuery = &sqlQuery
	}
	if len(answer.Rows) > 0 {
		data, err := jsonutil.MarshalRows(answer.Rows)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	if answer.Error != "" {
		errText := answer.Error
		msg.Error = &errText
	}
	return msg, nil
}

func toHistory(messages []*models.ChatMessage) []llm.Message {
	history := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleUser
		if m.Role == models.ChatRoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}
	return history
}

// priorResult returns the data of the last message when it is an assistant
// answer that carried rows, together with the question that produced it.
func priorResult(recent []*models.ChatMessage, logger *zap.Logger) *PriorResult {
	if len(recent) == 0 {
		return nil
	}
	last := recent[len(recent)-1]
	if last.Role != models.ChatRoleAssistant || !last.HasData() {
		return nil
	}

	var rows []map[string]any
	dec := json.NewDecoder(bytes.NewReader(last.Data))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		logger.Warn("Stored result data is not a row list", zap.Error(err))
		return nil
	}

	prior := &PriorResult{Rows: rows}
	for i := len(recent) - 2; i >= 0; i-- {
		if recent[i].Role == models.ChatRoleUser {
			prior.Question = recent[i].Content
			break
		}
	}
	return prior
}
