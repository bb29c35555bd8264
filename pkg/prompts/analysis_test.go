package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramingFor(t *testing.T) {
	tests := []struct {
		input    string
		expected Framing
	}{
		{"explain the results", FramingExplain},
		{"which product is best?", FramingExplain},
		{"summarize this", FramingSummary},
		{"give me a brief overview", FramingSummary},
		{"explain and summarize", FramingExplain},
		{"analyze the data", FramingAnalyze},
		{"insights please", FramingAnalyze},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, FramingFor(tt.input))
		})
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt := BuildAnalysisPrompt(AnalysisInput{
		Question:         "summarize the prices",
		OriginalQuestion: "show all products",
		Columns:          []string{"PR_CODE", "PR_SELLING_PRICE"},
		TotalRows:        1500,
		Stats: []ColumnStats{
			{Column: "PR_SELLING_PRICE", Min: 1, Max: 99.5, Avg: 42.123, Count: 100},
		},
		SampleJSON: `[{"PR_CODE": "A1", "PR_SELLING_PRICE": 10}]`,
		SampleSize: 20,
	})

	assert.Contains(t, prompt, "Your task is to SUMMARIZE")
	assert.Contains(t, prompt, `"show all products"`)
	assert.Contains(t, prompt, "Total Rows: 1,500")
	assert.Contains(t, prompt, "Column Names: PR_CODE, PR_SELLING_PRICE")
	assert.Contains(t, prompt, "PR_SELLING_PRICE: Min=1, Max=99.5, Avg=42.12, Count=100")
	assert.Contains(t, prompt, `"PR_CODE": "A1"`)
	assert.Contains(t, prompt, "sample of 20 rows out of 1,500")
}

func TestBuildAnalysisPrompt_NoStatsNoNote(t *testing.T) {
	prompt := BuildAnalysisPrompt(AnalysisInput{
		Question:   "analyze",
		Columns:    []string{"BR_DESC"},
		TotalRows:  3,
		SampleJSON: "[]",
		SampleSize: 3,
	})

	assert.NotContains(t, prompt, "Key Statistics")
	assert.NotContains(t, prompt, "Note: this is a sample")
	assert.NotContains(t, prompt, "Context:")
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatCount(tt.input))
	}
}
