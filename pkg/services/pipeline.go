package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/intent"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

// AnswerKind tags the outcome of one pipeline call.
type AnswerKind string

const (
	KindSQL               AnswerKind = "sql"
	KindClarification     AnswerKind = "clarification"
	KindLogicalAnswer     AnswerKind = "logical_answer"
	KindReadOnlyViolation AnswerKind = "read_only_violation"
	KindInvalid           AnswerKind = "invalid"
	KindBlocked           AnswerKind = "blocked"
	KindAnalysis          AnswerKind = "analysis"
)

// ReadOnlyError is the error text attached to every read-only rejection.
const ReadOnlyError = "Read-only access: Write operations are not allowed"

const (
	notAQueryMessage = "I'm sorry, but that doesn't seem to be a valid database query. Please ask me questions about your database, such as:\n" +
		"- 'Show me all brands'\n- 'How many products are there?'\n- 'List products with their categories'\n- 'What are the top 10 products?'"
	invalidQueryMessage = "I couldn't understand your question as a database query. Could you please rephrase it? For example:\n" +
		"- 'Show me all brands'\n- 'How many products are in the database?'\n- 'List all categories'"
	readOnlyMessage = "Read-Only Access: you only have read-only access to this database. " +
		"Write operations like DELETE, UPDATE, INSERT, TRUNCATE, DROP, or ALTER are not allowed.\n\n" +
		"You can only query and view data using SELECT statements."
	noSchemaMessage   = "No schema available: the database returned no tables to query."
	noResultsMessage  = "The query executed successfully but returned no results."
	executionErrorFmt = "I generated a SQL query, but there was an error executing it: %s"
)

var (
	allPattern   = regexp.MustCompile(`(?i)\ball\b`)
	digitPattern = regexp.MustCompile(`\d`)
)

// SchemaSource projects the business schema for prompt injection.
type SchemaSource interface {
	Project(ctx context.Context, scope string) schema.Descriptor
}

// SQLExecutor runs a verified statement. It reports failures in the result.
type SQLExecutor interface {
	Run(ctx context.Context, sqlQuery string, rowLimit int) *datasource.ExecutionResult
}

// AnswerRequest is one natural-language question.
type AnswerRequest struct {
	Message string
	History []llm.Message
	ModelID string
	// SessionID keys the table scope and tags logs. It may be empty.
	SessionID string
	// RowLimit overrides the configured limit. Zero uses the configured
	// limit, a negative value means unlimited.
	RowLimit int
	// Prior is the data of the previous answer, used for analysis follow-ups.
	Prior *PriorResult
}

// Answer is the typed outcome of a question.
type Answer struct {
	Kind        AnswerKind
	Message     string
	SQL         string
	Columns     []datasource.ColumnInfo
	Rows        []map[string]any
	TotalCount  *int
	HasMore     bool
	Error       string
	ModelID     string
	Blocked     bool
	BlockReason intent.Reason
}

// PipelineConfig holds pipeline limits.
type PipelineConfig struct {
	DefaultRowLimit int
}

// Pipeline turns a question into a vetted, executed SQL statement.
type Pipeline struct {
	schema      SchemaSource
	executor    SQLExecutor
	models      ModelResolver
	synthesizer *Synthesizer
	analysis    AnalysisService
	scope       TableScope
	cfg         PipelineConfig
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewPipeline wires the pipeline stages. scope may be nil when no session
// table selection is kept.
func NewPipeline(
	schemaSource SchemaSource,
	executor SQLExecutor,
	models ModelResolver,
	synthesizer *Synthesizer,
	analysis AnalysisService,
	scope TableScope,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if cfg.DefaultRowLimit == 0 {
		cfg.DefaultRowLimit = datasource.DefaultRowLimit
	}
	return &Pipeline{
		schema:      schemaSource,
		executor:    executor,
		models:      models,
		synthesizer: synthesizer,
		analysis:    analysis,
		scope:       scope,
		cfg:         cfg,
		auditor:     audit.NewSecurityAuditor(logger),
		logger:      logger.Named("pipeline"),
	}
}

// Answer runs one question through the pipeline.
//
// Every expected outcome, including blocked, invalid and failed queries, is
// an Answer. The only errors are *llm.Error when the model is unavailable
// and apperrors.ErrUnknownModel for an unsupported model ID.
func (p *Pipeline) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	start := time.Now()
	message := strings.TrimSpace(req.Message)

	verdict := intent.Classify(message)
	if verdict.Blocked && verdict.IsWriteIntent() {
		p.logger.Info("Write intent blocked before generation",
			zap.String("reason", string(verdict.Reason)),
			zap.String("keyword", verdict.Keyword))
		p.auditor.LogWriteIntent(ctx, req.SessionID, string(verdict.Reason), verdict.Keyword)
		return &Answer{
			Kind:        KindReadOnlyViolation,
			Message:     readOnlyMessage,
			Error:       ReadOnlyError,
			Blocked:     true,
			BlockReason: verdict.Reason,
		}, nil
	}

	if req.Prior != nil && DetectAnalysisRequest(message) {
		return p.analyze(ctx, req, message)
	}

	if verdict.Blocked {
		p.logger.Debug("Message blocked before generation", zap.String("reason", string(verdict.Reason)))
		return &Answer{
			Kind:        KindBlocked,
			Message:     notAQueryMessage,
			Blocked:     true,
			BlockReason: verdict.Reason,
		}, nil
	}

	backend, modelID, err := p.models.Resolve(req.ModelID)
	if err != nil {
		return nil, err
	}

	scope := ""
	if p.scope != nil {
		scope = p.scope.Get(req.SessionID)
	}
	descriptor := p.schema.Project(ctx, scope)
	if descriptor.IsEmpty() {
		p.logger.Warn("No schema available for generation", zap.String("scope", scope))
		return &Answer{
			Kind:    KindInvalid,
			Message: noSchemaMessage,
			Error:   apperrors.ErrNoSchema.Error(),
			ModelID: modelID,
		}, nil
	}

	raw, err := p.synthesizer.Synthesize(ctx, SynthesisRequest{
		Message:   message,
		History:   req.History,
		Schema:    descriptor,
		Backend:   backend,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, err
	}

	answer := p.interpret(ctx, raw, req, message)
	answer.ModelID = modelID

	p.logger.Info("Answered question",
		zap.String("kind", string(answer.Kind)),
		zap.String("model", modelID),
		zap.Int("rows", len(answer.Rows)),
		zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}

// interpret classifies a completion and, for SQL, normalizes, verifies and
// executes it.
func (p *Pipeline) interpret(ctx context.Context, raw string, req AnswerRequest, message string) *Answer {
	classification := sqlutil.Classify(raw)

	switch classification.Kind {
	case sqlutil.KindClarification:
		return &Answer{Kind: KindClarification, Message: classification.Text}
	case sqlutil.KindLogicalAnswer:
		return &Answer{Kind: KindLogicalAnswer, Message: classification.Text}
	case sqlutil.KindReadOnlyViolation:
		return &Answer{Kind: KindReadOnlyViolation, Message: readOnlyMessage, Error: ReadOnlyError}
	case sqlutil.KindSQL:
		// handled below
	default:
		return &Answer{Kind: KindInvalid, Message: invalidQueryMessage}
	}

	normalized, err := sqlutil.Normalize(classification.Text, message)
	if err != nil {
		p.logger.Warn("Generated SQL could not be normalized",
			zap.String("sql", logging.SanitizeQuery(classification.Text)),
			zap.Error(err))
		return &Answer{Kind: KindInvalid, Message: invalidQueryMessage, Error: err.Error()}
	}

	safety := sqlutil.Verify(normalized)
	if !safety.ReadOnly {
		p.logger.Warn("Generated SQL rejected by safety gate",
			zap.String("sql", logging.SanitizeQuery(normalized)),
			zap.String("reason", safety.Reason),
			zap.String("keyword", safety.Keyword))
		p.auditor.LogSQLRejected(ctx, req.SessionID, audit.SQLRejectionDetails{
			Reason:    safety.Reason,
			Keyword:   safety.Keyword,
			SQL:       normalized,
			Injection: safety.Injection,
		})
		return &Answer{
			Kind:    KindReadOnlyViolation,
			Message: rejectionMessage(safety),
			SQL:     normalized,
			Error:   ReadOnlyError,
		}
	}

	// The server runs the text the gate inspected, with comments removed.
	executable := strings.TrimSpace(sqlutil.StripComments(normalized))
	result := p.executor.Run(ctx, executable, p.rowLimit(message, req.RowLimit))
	answer := &Answer{
		Kind:       KindSQL,
		SQL:        normalized,
		Columns:    result.Columns,
		Rows:       result.Rows,
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
		Error:      result.Error,
	}
	switch {
	case result.Failed():
		answer.Message = fmt.Sprintf(executionErrorFmt, result.Error)
	case result.RowCount == 0:
		answer.Message = noResultsMessage
	default:
		answer.Message = foundMessage(result)
	}
	return answer
}

func (p *Pipeline) analyze(ctx context.Context, req AnswerRequest, message string) (*Answer, error) {
	backend, modelID, err := p.models.Resolve(req.ModelID)
	if err != nil {
		return nil, err
	}

	text, err := p.analysis.Analyze(ctx, AnalysisRequest{
		Question:  message,
		Prior:     req.Prior,
		Backend:   backend,
		SessionID: req.SessionID,
	})
	if err != nil {
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			return nil, err
		}
		return nil, fmt.Errorf("analyze prior result: %w", err)
	}
	return &Answer{Kind: KindAnalysis, Message: text, ModelID: modelID}, nil
}

// rowLimit resolves the execution limit. A message asking for "all" rows
// without naming a number is unlimited.
func (p *Pipeline) rowLimit(message string, requested int) int {
	switch {
	case requested < 0:
		return 0
	case requested > 0:
		return requested
	case allPattern.MatchString(message) && !digitPattern.MatchString(message):
		return 0
	default:
		return p.cfg.DefaultRowLimit
	}
}

func rejectionMessage(v sqlutil.Verdict) string {
	if v.Keyword != "" {
		return fmt.Sprintf("%s: the generated query contains %s.", ReadOnlyError, v.Keyword)
	}
	return fmt.Sprintf("%s: %s.", ReadOnlyError, v.Reason)
}

func foundMessage(result *datasource.ExecutionResult) string {
	total := result.RowCount
	if result.TotalCount != nil {
		total = *result.TotalCount
	}

	noun := "results"
	if total == 1 {
		noun = "result"
	}
	msg := fmt.Sprintf("Found %s %s.", prompts.FormatCount(total), noun)
	if total > result.RowCount {
		msg += fmt.Sprintf(" Showing the first %s.", prompts.FormatCount(result.RowCount))
	}
	return msg
}
