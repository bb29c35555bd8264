package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

func newChatMux(svc *mockChatService) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(svc, zap.NewNop()).RegisterRoutes(mux, passThrough)
	return mux
}

func postChat(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler_Success(t *testing.T) {
	sessionID := uuid.New()
	total := 1
	svc := &mockChatService{chatFunc: func(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error) {
		return &services.ChatResult{SessionID: sessionID, Answer: &services.Answer{
			Kind:       services.KindSQL,
			Message:    "Found 1 result.",
			SQL:        "SELECT * FROM [PRODUCT]",
			Rows:       []map[string]any{{"PRICE": decimal.RequireFromString("12.50"), "ADDED": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}},
			TotalCount: &total,
			ModelID:    "gpt-4o-mini",
		}}, nil
	}}

	rec := postChat(t, newChatMux(svc), `{"message":"  show products  ","model":"gpt-4o-mini"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, sessionID.String(), resp.SessionID)
	assert.Equal(t, services.KindSQL, resp.Kind)
	assert.Equal(t, "SELECT * FROM [PRODUCT]", resp.SQL)
	assert.Equal(t, 1, resp.RowCount)
	require.Len(t, resp.Data, 1)
	assert.InDelta(t, 12.5, resp.Data[0]["PRICE"], 1e-9, "decimals travel as JSON numbers")
	assert.Equal(t, "2024-05-01T00:00:00Z", resp.Data[0]["ADDED"])

	assert.Equal(t, "show products", svc.lastChat.Message)
	assert.Equal(t, uuid.Nil, svc.lastChat.SessionID)
	assert.Nil(t, svc.lastChat.History, "no client history means stored history")
}

func TestChatHandler_ClientHistory(t *testing.T) {
	svc := &mockChatService{chatFunc: func(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error) {
		return &services.ChatResult{SessionID: uuid.New(), Answer: &services.Answer{Kind: services.KindClarification, Message: "Which table?"}}, nil
	}}

	rec := postChat(t, newChatMux(svc), `{"message":"show them","history":[{"role":"user","content":"hi"},{"role":"Assistant","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.lastChat.History, 2)
	assert.Equal(t, llm.RoleAssistant, svc.lastChat.History[1].Role)

	rec = postChat(t, newChatMux(svc), `{"message":"show them","history":[{"role":"system","content":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_BadRequests(t *testing.T) {
	svc := &mockChatService{chatFunc: func(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	mux := newChatMux(svc)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"message":`, "invalid_request"},
		{"empty message", `{"message":"   "}`, "missing_message"},
		{"bad session id", `{"message":"show brands","session_id":"nope"}`, "invalid_session_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, mux, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestChatHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown model", fmt.Errorf("%w: gpt-9", apperrors.ErrUnknownModel), http.StatusBadRequest, "unknown_model"},
		{"unknown session", apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{"model timeout", llm.NewErrorWithContext(llm.ErrorTypeTimeout, "model request timed out", true, context.DeadlineExceeded, "gpt-4o-mini", "", 0), http.StatusGatewayTimeout, "model_timeout"},
		{"model auth", llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, nil), http.StatusBadGateway, "model_auth_failed"},
		{"unexpected", fmt.Errorf("save user message: boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockChatService{chatFunc: func(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error) {
				return nil, tt.err
			}}

			rec := postChat(t, newChatMux(svc), `{"message":"show brands","session_id":"`+uuid.NewString()+`"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["error"])
			assert.NotContains(t, body["message"], "boom", "internal errors are not echoed")
		})
	}
}
