package services

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/prompts"
)

const (
	analysisTemperature = 0.7
	analysisMaxTokens   = 800
	analysisStatsRows   = 100
	analysisSampleRows  = 20

	// DefaultAnalysisTimeout bounds a single analysis call.
	DefaultAnalysisTimeout = 60 * time.Second

	// NoDataMessage answers an analysis request with nothing to analyze.
	NoDataMessage = "No data available to analyze."
)

var analysisKeywords = []string{
	"analyze", "analysis", "summarize", "summary", "summarization",
	"explain", "insights", "findings", "interpret", "interpretation",
	"overview", "breakdown", "tell me about", "describe the data",
	"what can you tell me about", "what does this data show", "what does this show",
	"what is this data",
}

// DetectAnalysisRequest reports whether message asks about previously
// returned data rather than for a new query.
func DetectAnalysisRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range analysisKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// PriorResult is the data returned by an earlier turn of the conversation.
type PriorResult struct {
	Question string
	Columns  []string
	Rows     []map[string]any
}

// HasData reports whether there is anything to analyze.
func (p *PriorResult) HasData() bool {
	return p != nil && len(p.Rows) > 0
}

// AnalysisRequest asks a follow-up question about a prior result.
type AnalysisRequest struct {
	Question  string
	Prior     *PriorResult
	Backend   llm.Backend
	SessionID string
}

// AnalysisService answers follow-up questions about returned rows.
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)
}

type analysisService struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewAnalysisService creates an AnalysisService. A non-positive timeout uses
// DefaultAnalysisTimeout.
func NewAnalysisService(timeout time.Duration, logger *zap.Logger) AnalysisService {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	return &analysisService{
		timeout: timeout,
		logger:  logger.Named("analysis"),
	}
}

func (s *analysisService) Analyze(ctx context.Context, req AnalysisRequest) (string, error) {
	if !req.Prior.HasData() {
		return NoDataMessage, nil
	}

	rows := req.Prior.Rows
	columns := req.Prior.Columns
	if len(columns) == 0 {
		columns = sortedKeys(rows[0])
	}

	statsRows := rows[:min(len(rows), analysisStatsRows)]
	sample := statsRows[:min(len(statsRows), analysisSampleRows)]

	sampleJSON, err := json.MarshalIndent(jsonutil.InterchangeRows(sample), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sample rows: %w", err)
	}

	userPrompt := prompts.BuildAnalysisPrompt(prompts.AnalysisInput{
		Question:         req.Question,
		OriginalQuestion: req.Prior.Question,
		Columns:          columns,
		TotalRows:        len(rows),
		Stats:            columnStats(statsRows, columns),
		SampleJSON:       string(sampleJSON),
		SampleSize:       len(sample),
	})

	s.logger.Info("Analyzing prior result",
		zap.String("model", req.Backend.Model()),
		zap.Int("rows", len(rows)),
		zap.String("framing", string(prompts.FramingFor(req.Question))))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = llm.WithSessionContext(ctx, req.SessionID, llm.PurposeAnalysis)

	completion, err := req.Backend.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompts.AnalysisSystemPrompt,
		UserMessage:  userPrompt,
		Temperature:  analysisTemperature,
		MaxTokens:    analysisMaxTokens,
	})
	if err != nil {
		return "", modelError(ctx, err, req.Backend.Model())
	}
	return strings.TrimSpace(completion.Content), nil
}

// columnStats computes min/max/avg/count for columns whose first non-null
// value is numeric. Non-numeric values in such a column are skipped.
func columnStats(rows []map[string]any, columns []string) []prompts.ColumnStats {
	var stats []prompts.ColumnStats
	for _, col := range columns {
		numeric := false
		decided := false
		var st prompts.ColumnStats
		var sum float64
		for _, row := range rows {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			f, isNum := jsonutil.Float64(v)
			if !decided {
				decided = true
				numeric = isNum
				if !numeric {
					break
				}
			}
			if !isNum {
				continue
			}
			if st.Count == 0 || f < st.Min {
				st.Min = f
			}
			if st.Count == 0 || f > st.Max {
				st.Max = f
			}
			sum += f
			st.Count++
		}
		if numeric && st.Count > 0 {
			st.Column = col
			st.Avg = sum / float64(st.Count)
			stats = append(stats, st)
		}
	}
	return stats
}

// sortedKeys orders the columns of a row without a known column list.
func sortedKeys(row map[string]any) []string {
	return slices.Sorted(maps.Keys(row))
}

var _ AnalysisService = (*analysisService)(nil)
