package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// mockChatService is a configurable services.ChatService for handler tests.
type mockChatService struct {
	chatFunc          func(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error)
	createSessionFunc func(ctx context.Context, title string) (*models.ChatSession, error)
	listSessionsFunc  func(ctx context.Context) ([]*models.ChatSession, error)
	messagesFunc      func(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error)
	deleteSessionFunc func(ctx context.Context, sessionID uuid.UUID) error

	lastChat services.ChatRequest
}

var _ services.ChatService = (*mockChatService)(nil)

func (m *mockChatService) Chat(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error) {
	m.lastChat = req
	return m.chatFunc(ctx, req)
}

func (m *mockChatService) CreateSession(ctx context.Context, title string) (*models.ChatSession, error) {
	return m.createSessionFunc(ctx, title)
}

func (m *mockChatService) ListSessions(ctx context.Context) ([]*models.ChatSession, error) {
	return m.listSessionsFunc(ctx)
}

func (m *mockChatService) Messages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	return m.messagesFunc(ctx, sessionID)
}

func (m *mockChatService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	return m.deleteSessionFunc(ctx, sessionID)
}

// mockSchemaCatalog serves a fixed descriptor and table list.
type mockSchemaCatalog struct {
	descriptor schema.Descriptor
	tables     []datasource.TableMetadata
	err        error
	lastScope  string
}

func (m *mockSchemaCatalog) Project(_ context.Context, scope string) schema.Descriptor {
	m.lastScope = scope
	return m.descriptor
}

func (m *mockSchemaCatalog) Tables(context.Context) ([]datasource.TableMetadata, error) {
	return m.tables, m.err
}

func (m *mockSchemaCatalog) HasTable(_ context.Context, name string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, t := range m.tables {
		if t.TableName == name {
			return true, nil
		}
	}
	return false, nil
}

type mockModelCatalog struct {
	models []llm.ModelInfo
}

func (m mockModelCatalog) Available() []llm.ModelInfo { return m.models }
func (m mockModelCatalog) DefaultModel() string       { return "gpt-4o-mini" }

// passThrough stands in for the bearer middleware.
func passThrough(next http.HandlerFunc) http.HandlerFunc { return next }
