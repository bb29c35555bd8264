package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

func newSessionMux(svc *mockChatService) *http.ServeMux {
	mux := http.NewServeMux()
	NewSessionHandler(svc, zap.NewNop()).RegisterRoutes(mux, passThrough)
	return mux
}

func TestSessionHandler_List(t *testing.T) {
	svc := &mockChatService{listSessionsFunc: func(ctx context.Context) ([]*models.ChatSession, error) {
		return nil, nil
	}}

	rec := httptest.NewRecorder()
	newSessionMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":[]}`, rec.Body.String())
}

func TestSessionHandler_Create(t *testing.T) {
	var gotTitle string
	svc := &mockChatService{createSessionFunc: func(ctx context.Context, title string) (*models.ChatSession, error) {
		gotTitle = title
		return &models.ChatSession{ID: uuid.New(), Title: models.SessionTitle(title)}, nil
	}}
	mux := newSessionMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"title":"Brands"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Brands", gotTitle)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var session models.ChatSession
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.Equal(t, models.DefaultSessionTitle, session.Title)
}

func TestSessionHandler_Messages(t *testing.T) {
	sessionID := uuid.New()
	sqlQuery := "SELECT * FROM [BRAND]"
	svc := &mockChatService{messagesFunc: func(ctx context.Context, id uuid.UUID) ([]*models.ChatMessage, error) {
		if id != sessionID {
			return nil, apperrors.ErrNotFound
		}
		return []*models.ChatMessage{
			{SessionID: id, Role: models.ChatRoleUser, Content: "show brands"},
			{SessionID: id, Role: models.ChatRoleAssistant, Content: "Found 1 result.", SQLQuery: &sqlQuery, Data: json.RawMessage(`[{"BR_CODE":"B1"}]`)},
		}, nil
	}}
	mux := newSessionMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID.String()+"/messages", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessagesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, sqlQuery, *resp.Messages[1].SQLQuery)
	assert.JSONEq(t, `[{"BR_CODE":"B1"}]`, string(resp.Messages[1].Data))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+uuid.NewString()+"/messages", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid/messages", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_Delete(t *testing.T) {
	var deleted uuid.UUID
	svc := &mockChatService{deleteSessionFunc: func(ctx context.Context, id uuid.UUID) error {
		deleted = id
		return nil
	}}

	id := uuid.New()
	rec := httptest.NewRecorder()
	newSessionMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, deleted)
}
