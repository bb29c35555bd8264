package prompts

import (
	"fmt"
	"strings"
)

// Framing selects how the analysis answer is shaped.
type Framing string

const (
	FramingExplain Framing = "explain"
	FramingSummary Framing = "summary"
	FramingAnalyze Framing = "analyze"
)

var (
	explainWords = []string{"explain", "explanation", "what does", "what is", "how", "which", "best", "most"}
	summaryWords = []string{"summarize", "summary", "overview", "brief"}
)

// FramingFor picks the framing for a follow-up question. Explanation wins
// over summary when both apply.
func FramingFor(question string) Framing {
	lower := strings.ToLower(question)
	for _, w := range explainWords {
		if strings.Contains(lower, w) {
			return FramingExplain
		}
	}
	for _, w := range summaryWords {
		if strings.Contains(lower, w) {
			return FramingSummary
		}
	}
	return FramingAnalyze
}

// ColumnStats summarizes one numeric column of a result set.
type ColumnStats struct {
	Column string
	Min    float64
	Max    float64
	Avg    float64
	Count  int
}

// AnalysisInput is everything the analysis prompt describes.
type AnalysisInput struct {
	// Question is the follow-up the user is asking now.
	Question string
	// OriginalQuestion produced the data being analyzed.
	OriginalQuestion string
	Columns          []string
	TotalRows        int
	Stats            []ColumnStats
	// SampleJSON is the sample rows already serialized as JSON.
	SampleJSON string
	SampleSize int
}

// AnalysisSystemPrompt instructs the model to answer from the data only.
const AnalysisSystemPrompt = `You are a helpful data analyst. Explain data in a clear, conversational and human-friendly way.

Rules:
1. Use ONLY the data provided. Read the exact column names and values in the sample and never guess what else the data contains.
2. Answer only what the user asked, specifically and with focus.
3. Refer to columns by their exact names (PR_CODE, PR_DESC, BR_CODE and so on).
4. Quote actual values from the data: specific products, codes or amounts.
5. For "best" questions, name the criteria the data supports (price, stock on hand, sales). If no column supports a judgement, say so and describe what is available.
6. Write naturally, as if explaining to a colleague, in short paragraphs.
7. Be concise and avoid bullet points unless they are genuinely needed.`

// BuildAnalysisPrompt creates the user prompt for a data follow-up.
func BuildAnalysisPrompt(in AnalysisInput) string {
	var prompt strings.Builder

	prompt.WriteString(taskInstruction(FramingFor(in.Question), in.Question))
	prompt.WriteString("\n\n")

	prompt.WriteString(fmt.Sprintf("IMPORTANT: The user is asking: %q\n", in.Question))
	prompt.WriteString("Answer this specific question using ONLY the data below.\n\n")
	if in.OriginalQuestion != "" {
		prompt.WriteString(fmt.Sprintf("Context: the data was retrieved in response to: %q\n\n", in.OriginalQuestion))
	}

	prompt.WriteString("## Data Information\n\n")
	prompt.WriteString(fmt.Sprintf("- Total Rows: %s\n", FormatCount(in.TotalRows)))
	prompt.WriteString(fmt.Sprintf("- Column Names: %s\n", strings.Join(in.Columns, ", ")))
	prompt.WriteString("- These are the exact column names in the data\n\n")

	if len(in.Stats) > 0 {
		prompt.WriteString("## Key Statistics\n\n")
		for _, s := range in.Stats {
			prompt.WriteString(fmt.Sprintf("- %s: Min=%s, Max=%s, Avg=%.2f, Count=%d\n",
				s.Column, formatNumber(s.Min), formatNumber(s.Max), s.Avg, s.Count))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString(fmt.Sprintf("## Data (first %d rows of %s total)\n\n", in.SampleSize, FormatCount(in.TotalRows)))
	prompt.WriteString(in.SampleJSON)
	prompt.WriteString("\n")

	if in.TotalRows > in.SampleSize {
		prompt.WriteString(fmt.Sprintf("\nNote: this is a sample of %d rows out of %s.\n", in.SampleSize, FormatCount(in.TotalRows)))
	}

	prompt.WriteString(fmt.Sprintf("\nREMEMBER: answer %q using ONLY the data shown above.\n", in.Question))
	return prompt.String()
}

func taskInstruction(f Framing, question string) string {
	var verb, points string
	switch f {
	case FramingExplain:
		verb = "EXPLAIN"
		points = `Explain:
- What the data shows in relation to the question
- Key findings that answer it
- Patterns or notable observations relevant to it

Use actual numbers and values from the data.`
	case FramingSummary:
		verb = "SUMMARIZE"
		points = `Provide a concise summary that:
- Directly addresses the question
- Highlights the most important findings and key numbers
- Gives a clear overview of what the data reveals`
	default:
		verb = "ANALYZE"
		points = `Provide an analysis that:
- Directly answers the question using the data
- Identifies insights, patterns and trends relevant to it
- Highlights the important statistics`
	}
	return fmt.Sprintf("Your task is to %s the data based on the user's question: %q\n\n"+
		"The data below came from a previous query. The user now asks a new question about it.\n\n%s",
		verb, question, points)
}

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatNumber prints integral values without a fraction.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
