package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/intent"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
)

// fakeSchemaSource returns a fixed descriptor and records the scope.
type fakeSchemaSource struct {
	mu         sync.Mutex
	descriptor schema.Descriptor
	calls      int
	lastScope  string
}

func (f *fakeSchemaSource) Project(_ context.Context, scope string) schema.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastScope = scope
	return f.descriptor
}

// fakeExecutor returns a fixed result and records what it ran.
type fakeExecutor struct {
	mu        sync.Mutex
	result    *datasource.ExecutionResult
	calls     int
	lastSQL   string
	lastLimit int
}

func (f *fakeExecutor) Run(_ context.Context, sqlQuery string, rowLimit int) *datasource.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSQL = sqlQuery
	f.lastLimit = rowLimit
	if f.result == nil {
		return &datasource.ExecutionResult{SQL: sqlQuery}
	}
	res := *f.result
	res.SQL = sqlQuery
	return &res
}

func brandSchema() schema.Descriptor {
	return schema.Descriptor{Tables: []schema.Table{{
		Name: "BRAND",
		Columns: []schema.Column{
			{Name: "BR_CODE", Type: "VARCHAR", Description: "Brand code"},
			{Name: "BR_DESC", Type: "VARCHAR", Nullable: true, Description: "Brand description"},
		},
	}}}
}

func brandRows() *datasource.ExecutionResult {
	total := 2
	return &datasource.ExecutionResult{
		Columns:    []datasource.ColumnInfo{{Name: "BR_CODE", Type: "VARCHAR"}, {Name: "BR_DESC", Type: "VARCHAR"}},
		Rows:       []map[string]any{{"BR_CODE": "B1", "BR_DESC": "SAS"}, {"BR_CODE": "B2", "BR_DESC": "Acme"}},
		RowCount:   2,
		TotalCount: &total,
	}
}

type pipelineFixture struct {
	pipeline *Pipeline
	backend  *llm.MockBackend
	schema   *fakeSchemaSource
	executor *fakeExecutor
	scope    TableScope
	logs     *observer.ObservedLogs
}

func newPipelineFixture(t *testing.T, response string) *pipelineFixture {
	t.Helper()

	backend := llm.NewMockBackend(response)
	registry, err := llm.NewRegistryWithBackends(map[string]llm.Backend{"gpt-4o-mini": backend}, llm.RegistryConfig{}, zap.NewNop())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	f := &pipelineFixture{
		logs:     logs,
		backend:  backend,
		schema:   &fakeSchemaSource{descriptor: brandSchema()},
		executor: &fakeExecutor{result: brandRows()},
		scope:    NewTableScope(),
	}
	f.pipeline = NewPipeline(
		f.schema,
		f.executor,
		registry,
		NewSynthesizer(SynthesizerConfig{}, zap.NewNop()),
		NewAnalysisService(0, zap.NewNop()),
		f.scope,
		PipelineConfig{},
		zap.New(core),
	)
	return f
}

func TestPipeline_ShowMeAllBrands(t *testing.T) {
	f := newPipelineFixture(t, "SELECT * FROM [BRAND]")

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show me all brands"})
	require.NoError(t, err)

	assert.Equal(t, KindSQL, answer.Kind)
	assert.Equal(t, "SELECT * FROM [BRAND]", answer.SQL)
	assert.Equal(t, "SELECT * FROM [BRAND]", f.executor.lastSQL)
	assert.Equal(t, 0, f.executor.lastLimit, "\"all\" without a number is unlimited")
	assert.Len(t, answer.Rows, 2)
	assert.Equal(t, "Found 2 results.", answer.Message)
	assert.Equal(t, "gpt-4o-mini", answer.ModelID)
	assert.Equal(t, 1, f.backend.Calls())
	assert.Contains(t, f.backend.LastRequest().SystemPrompt, "BRAND[2]")
}

func TestPipeline_WriteIntentMakesNoModelCall(t *testing.T) {
	for _, message := range []string{"delete all brands", "DELETE FROM BRAND", "update BRAND set BR_DESC = 'x'"} {
		t.Run(message, func(t *testing.T) {
			f := newPipelineFixture(t, "SELECT 1")

			answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: message})
			require.NoError(t, err)

			assert.Equal(t, KindReadOnlyViolation, answer.Kind)
			assert.True(t, answer.Blocked)
			assert.Equal(t, ReadOnlyError, answer.Error)
			assert.Equal(t, 0, f.backend.Calls())
			assert.Equal(t, 0, f.schema.calls)
			assert.Equal(t, 0, f.executor.calls)
		})
	}
}

func TestPipeline_GreetingBlocked(t *testing.T) {
	f := newPipelineFixture(t, "SELECT 1")

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, KindBlocked, answer.Kind)
	assert.Equal(t, intent.ReasonGreeting, answer.BlockReason)
	assert.Contains(t, answer.Message, "doesn't seem to be a valid database query")
	assert.Equal(t, 0, f.backend.Calls())
}

func TestPipeline_SafetyGateRejectsGeneratedWrite(t *testing.T) {
	f := newPipelineFixture(t, "SELECT name FROM sys.objects EXEC xp_cmdshell 'dir'")

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "list the objects in the database"})
	require.NoError(t, err)

	assert.Equal(t, KindReadOnlyViolation, answer.Kind)
	assert.Contains(t, answer.Message, ReadOnlyError)
	assert.False(t, answer.Blocked)
	assert.Equal(t, 0, f.executor.calls, "rejected statements never execute")
}

func TestPipeline_NestedCommentCannotHideWrite(t *testing.T) {
	f := newPipelineFixture(t, "SELECT name FROM [BRAND] /* /* */ ' */ DELETE FROM [BRAND] /* ' */")

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "list the brand names"})
	require.NoError(t, err)

	assert.Equal(t, KindReadOnlyViolation, answer.Kind)
	assert.Equal(t, 0, f.executor.calls)
}

func TestPipeline_ExecutesWithoutComments(t *testing.T) {
	f := newPipelineFixture(t, "SELECT * FROM [BRAND] /* every brand */")

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show me all brands"})
	require.NoError(t, err)

	assert.Equal(t, KindSQL, answer.Kind)
	assert.Equal(t, "SELECT * FROM [BRAND]", f.executor.lastSQL)
}

func TestPipeline_AuditsSecurityEvents(t *testing.T) {
	t.Run("rejected sql", func(t *testing.T) {
		f := newPipelineFixture(t, "SELECT name FROM sys.objects EXEC xp_cmdshell 'dir'")

		_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "list the objects", SessionID: "s1"})
		require.NoError(t, err)

		events := f.logs.FilterLoggerName("security_audit").All()
		require.Len(t, events, 1)
		assert.Equal(t, string(audit.EventUnsafeSQLRejected), events[0].ContextMap()["event_type"])
		assert.Equal(t, "s1", events[0].ContextMap()["session_id"])
	})

	t.Run("write intent", func(t *testing.T) {
		f := newPipelineFixture(t, "SELECT 1")

		_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "delete all brands"})
		require.NoError(t, err)

		events := f.logs.FilterLoggerName("security_audit").All()
		require.Len(t, events, 1)
		assert.Equal(t, string(audit.EventWriteIntentBlocked), events[0].ContextMap()["event_type"])
	})

	t.Run("answered question", func(t *testing.T) {
		f := newPipelineFixture(t, "SELECT * FROM [BRAND]")

		_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show me all brands"})
		require.NoError(t, err)
		assert.Zero(t, f.logs.FilterLoggerName("security_audit").Len())
	})
}

func TestPipeline_NonSQLOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantKind    AnswerKind
		wantMessage string
	}{
		{name: "clarification", response: "CLARIFICATION_NEEDED: Which table?", wantKind: KindClarification, wantMessage: "Which table?"},
		{name: "logical answer", response: "LOGICAL_ANSWER: Use =AVERAGE(A1:A9).", wantKind: KindLogicalAnswer, wantMessage: "Use =AVERAGE(A1:A9)."},
		{name: "model read-only marker", response: "READ_ONLY_ERROR", wantKind: KindReadOnlyViolation, wantMessage: readOnlyMessage},
		{name: "invalid", response: "INVALID_QUERY", wantKind: KindInvalid, wantMessage: invalidQueryMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, tt.response)

			answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show me the brand table"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantKind, answer.Kind)
			assert.Equal(t, tt.wantMessage, answer.Message)
			assert.Equal(t, 0, f.executor.calls)
		})
	}
}

func TestPipeline_UnknownModel(t *testing.T) {
	f := newPipelineFixture(t, "SELECT 1")

	_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show me all brands", ModelID: "gpt-9"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownModel)
	assert.Equal(t, 0, f.backend.Calls())
}

func TestPipeline_ModelTimeoutPropagates(t *testing.T) {
	f := newPipelineFixture(t, "")
	f.backend.CompleteFunc = func(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show me all brands"})
	require.Error(t, err)

	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrorTypeTimeout, llmErr.Type)
	assert.Equal(t, 0, f.executor.calls)
}

func TestPipeline_EmptySchema(t *testing.T) {
	f := newPipelineFixture(t, "SELECT 1")
	f.schema.descriptor = schema.Descriptor{}

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show me all brands"})
	require.NoError(t, err)

	assert.Equal(t, KindInvalid, answer.Kind)
	assert.Equal(t, apperrors.ErrNoSchema.Error(), answer.Error)
	assert.Equal(t, 0, f.backend.Calls())
}

func TestPipeline_ExecutionError(t *testing.T) {
	f := newPipelineFixture(t, "SELECT BR_NAME FROM [BRAND]")
	f.executor.result = &datasource.ExecutionResult{Error: "Invalid column name 'BR_NAME'."}

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show brand names"})
	require.NoError(t, err)

	assert.Equal(t, KindSQL, answer.Kind)
	assert.Equal(t, "I generated a SQL query, but there was an error executing it: Invalid column name 'BR_NAME'.", answer.Message)
	assert.Equal(t, "Invalid column name 'BR_NAME'.", answer.Error)
}

func TestPipeline_NoResultsAndTruncatedResults(t *testing.T) {
	f := newPipelineFixture(t, "SELECT * FROM [BRAND]")
	f.executor.result = &datasource.ExecutionResult{}

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show brands"})
	require.NoError(t, err)
	assert.Equal(t, noResultsMessage, answer.Message)

	total := 1500
	rows := make([]map[string]any, 1000)
	f.executor.result = &datasource.ExecutionResult{Rows: rows, RowCount: 1000, TotalCount: &total, HasMore: true}

	answer, err = f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show brands"})
	require.NoError(t, err)
	assert.Equal(t, "Found 1,500 results. Showing the first 1,000.", answer.Message)
	assert.True(t, answer.HasMore)
}

func TestPipeline_RowLimit(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		requested int
		expected  int
	}{
		{name: "default", message: "show brands by code", expected: datasource.DefaultRowLimit},
		{name: "show all", message: "show all brands", expected: 0},
		{name: "all with a number", message: "show all 5 brands", expected: datasource.DefaultRowLimit},
		{name: "all as part of a word", message: "show small brands", expected: datasource.DefaultRowLimit},
		{name: "explicit override", message: "show all brands", requested: 50, expected: 50},
		{name: "explicit unlimited", message: "show brands", requested: -1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, "SELECT * FROM [BRAND]")

			_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: tt.message, RowLimit: tt.requested})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.executor.lastLimit)
		})
	}
}

func TestPipeline_SessionTableScope(t *testing.T) {
	f := newPipelineFixture(t, "SELECT * FROM [BRAND]")
	f.scope.Set("session-a", "BRAND")

	_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show brands", SessionID: "session-a"})
	require.NoError(t, err)
	assert.Equal(t, "BRAND", f.schema.lastScope)

	_, err = f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show brands", SessionID: "session-b"})
	require.NoError(t, err)
	assert.Equal(t, "", f.schema.lastScope, "scopes do not leak between sessions")
}

func TestPipeline_MultiExtremumPrompt(t *testing.T) {
	f := newPipelineFixture(t, "SELECT * FROM [PRODUCT]")

	_, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "show oldest and newest product"})
	require.NoError(t, err)

	req := f.backend.LastRequest()
	assert.Equal(t, "show oldest and newest product", req.UserMessage)
	assert.Contains(t, req.SystemPrompt, "What was the oldest and newest product?")
	assert.Contains(t, req.SystemPrompt, "BOTH extremes")
}

func TestPipeline_AnalysisFollowUp(t *testing.T) {
	f := newPipelineFixture(t, "Acme and SAS are the only brands.")
	prior := &PriorResult{
		Question: "show me all brands",
		Rows:     []map[string]any{{"BR_CODE": "B1"}, {"BR_CODE": "B2"}},
	}

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "summarize the results", Prior: prior})
	require.NoError(t, err)

	assert.Equal(t, KindAnalysis, answer.Kind)
	assert.Equal(t, "Acme and SAS are the only brands.", answer.Message)
	assert.Equal(t, 0, f.schema.calls)
	assert.Equal(t, 0, f.executor.calls)

	req := f.backend.LastRequest()
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Equal(t, 800, req.MaxTokens)
	assert.Contains(t, req.UserMessage, "show me all brands")
}

func TestPipeline_AnalysisKeywordWithoutPriorGeneratesSQL(t *testing.T) {
	f := newPipelineFixture(t, "SELECT * FROM [BRAND]")

	answer, err := f.pipeline.Answer(context.Background(), AnswerRequest{Message: "give me an overview of brands"})
	require.NoError(t, err)
	assert.Equal(t, KindSQL, answer.Kind)
}
