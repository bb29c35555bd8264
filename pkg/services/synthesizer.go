package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
)

const (
	sqlTemperature = 0.3

	hostedMaxTokens       = 500
	localMaxTokens        = 300
	localComplexMaxTokens = 400

	// DefaultLocalSchemaBudget caps the schema text sent to local models.
	DefaultLocalSchemaBudget = 4000
	// DefaultRequestTimeout bounds a single SQL generation call.
	DefaultRequestTimeout = 30 * time.Second
)

// complexityWords mark a question that needs a longer completion from a
// local model (joins, aggregates, per-group answers). Whole words only:
// "brands" is not "and" and "account" is not "count".
var complexityWords = regexp.MustCompile(`(?i)\b(with|and|each|average|sum|count|group|join)\b`)

// ModelResolver maps a caller-supplied model ID to a backend.
type ModelResolver interface {
	Resolve(id string) (llm.Backend, string, error)
}

// SynthesizerConfig controls prompt construction and the model call.
type SynthesizerConfig struct {
	SchemaFormat      schema.Format
	LocalSchemaBudget int
	RequestTimeout    time.Duration
}

// SynthesisRequest is one SQL generation call.
type SynthesisRequest struct {
	Message string
	History []llm.Message
	Schema  schema.Descriptor
	Backend llm.Backend
	// SessionID tags backend logs.
	SessionID string
}

// Synthesizer builds the SQL generation prompt and calls the model.
type Synthesizer struct {
	cfg    SynthesizerConfig
	logger *zap.Logger
}

// NewSynthesizer creates a Synthesizer. Zero config values use defaults.
func NewSynthesizer(cfg SynthesizerConfig, logger *zap.Logger) *Synthesizer {
	if cfg.SchemaFormat == "" {
		cfg.SchemaFormat = schema.FormatNameTOON
	}
	if cfg.LocalSchemaBudget <= 0 {
		cfg.LocalSchemaBudget = DefaultLocalSchemaBudget
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Synthesizer{
		cfg:    cfg,
		logger: logger.Named("synthesizer"),
	}
}

// Synthesize returns the raw completion text for req. Backend failures are
// returned as *llm.Error; a timeout has Type llm.ErrorTypeTimeout.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (string, error) {
	local := req.Backend.IsLocal()

	format := s.cfg.SchemaFormat
	if local {
		// Truncation is only defined on table boundaries of the TOON form.
		format = schema.FormatNameTOON
	}
	schemaText, err := req.Schema.Format(format)
	if err != nil {
		return "", fmt.Errorf("serialize schema: %w", err)
	}
	if local {
		schemaText = schema.TruncateTOON(schemaText, s.cfg.LocalSchemaBudget)
	}

	completionReq := llm.CompletionRequest{
		SystemPrompt: prompts.BuildSQLSystemPrompt(schemaText, format, local),
		History:      prompts.TrimHistory(req.History, prompts.MaxHistoryTurns),
		UserMessage:  req.Message,
		Temperature:  sqlTemperature,
		MaxTokens:    maxTokensFor(req.Message, local),
	}

	s.logger.Debug("Generating SQL",
		zap.String("model", req.Backend.Model()),
		zap.Bool("local", local),
		zap.String("schema_format", string(format)),
		zap.Int("schema_chars", len(schemaText)),
		zap.Int("prompt_chars", len(completionReq.SystemPrompt)),
		zap.Int("history_turns", len(completionReq.History)))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	ctx = llm.WithSessionContext(ctx, req.SessionID, llm.PurposeSQLGeneration)

	completion, err := req.Backend.Complete(ctx, completionReq)
	if err != nil {
		return "", modelError(ctx, err, req.Backend.Model())
	}
	return completion.Content, nil
}

// maxTokensFor budgets the completion length by backend size.
func maxTokensFor(message string, local bool) int {
	if !local {
		return hostedMaxTokens
	}
	if complexityWords.MatchString(message) {
		return localComplexMaxTokens
	}
	return localMaxTokens
}

// modelError classifies a backend failure, reporting an expired deadline
// as a timeout even when the backend wrapped it as something else.
func modelError(ctx context.Context, err error, model string) *llm.Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llm.NewErrorWithContext(llm.ErrorTypeTimeout, "model request timed out", true, err, model, "", 0)
	}
	llmErr := llm.ClassifyError(err)
	if llmErr.Model == "" {
		llmErr.Model = model
	}
	return llmErr
}
