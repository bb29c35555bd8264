package sql

import (
	"regexp"
	"strings"
)

// Kind tags a raw model completion.
type Kind int

const (
	KindInvalid Kind = iota
	KindSQL
	KindClarification
	KindLogicalAnswer
	KindReadOnlyViolation
)

func (k Kind) String() string {
	switch k {
	case KindSQL:
		return "sql"
	case KindClarification:
		return "clarification"
	case KindLogicalAnswer:
		return "logical_answer"
	case KindReadOnlyViolation:
		return "read_only_violation"
	default:
		return "invalid_query"
	}
}

// Response tags the model emits in place of SQL.
const (
	TagClarification = "CLARIFICATION_NEEDED:"
	TagLogicalAnswer = "LOGICAL_ANSWER:"
	TagReadOnly      = "READ_ONLY_ERROR"
	TagInvalid       = "INVALID_QUERY"
)

// Classification is exactly one tag plus its payload. For KindSQL, Text is
// the extracted statement; for the prose kinds it is the user-facing text.
type Classification struct {
	Kind Kind
	Text string
}

var (
	thinkTagPattern  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFencePattern = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

	// Upper-case only: "from" and "update" are ordinary English words, while
	// models write SQL keywords in capitals.
	sqlKeywordPattern = regexp.MustCompile(`\b(SELECT|FROM|WHERE|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|TRUNCATE)\b`)

	clarificationPhrases = []string{
		"which table", "which column", "please specify", "please clarify",
		"could you clarify", "can you clarify", "did you mean", "do you mean",
		"could you please provide", "more details", "more information",
	}
	explanationTokens = []string{"excel", "formula", "=", "vlookup", "spreadsheet"}
)

// Classify inspects a raw completion and returns exactly one classification.
// The checks run in a fixed priority order and the first match wins; text
// that matches nothing is returned as a logical answer so the user always
// gets something displayable.
func Classify(raw string) Classification {
	text := cleanCompletion(raw)
	if text == "" {
		return Classification{Kind: KindInvalid}
	}

	switch {
	case strings.HasPrefix(text, TagClarification):
		return Classification{Kind: KindClarification, Text: strings.TrimSpace(strings.TrimPrefix(text, TagClarification))}
	case strings.HasPrefix(text, TagLogicalAnswer):
		return Classification{Kind: KindLogicalAnswer, Text: strings.TrimSpace(strings.TrimPrefix(text, TagLogicalAnswer))}
	case strings.HasPrefix(text, TagReadOnly):
		return Classification{Kind: KindReadOnlyViolation, Text: strings.TrimSpace(strings.TrimPrefix(text, TagReadOnly))}
	case strings.HasPrefix(text, TagInvalid):
		return Classification{Kind: KindInvalid, Text: strings.TrimSpace(strings.TrimPrefix(text, TagInvalid))}
	}

	if !sqlKeywordPattern.MatchString(text) {
		lower := strings.ToLower(text)
		if containsAny(lower, clarificationPhrases) {
			return Classification{Kind: KindClarification, Text: text}
		}
		if containsAny(lower, explanationTokens) {
			return Classification{Kind: KindLogicalAnswer, Text: text}
		}
	}

	if extracted := RepairCTE(ExtractSQL(text)); readOnlyPrefix.MatchString(extracted) {
		return Classification{Kind: KindSQL, Text: extracted}
	}

	return Classification{Kind: KindLogicalAnswer, Text: text}
}

// cleanCompletion removes reasoning blocks, markdown fences and wrapping
// quotes that some models add around an otherwise plain answer.
func cleanCompletion(raw string) string {
	text := thinkTagPattern.ReplaceAllString(raw, "")
	text = codeFencePattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	for _, q := range []string{`"`, "`", "'"} {
		if len(text) >= 2 && strings.HasPrefix(text, q) && strings.HasSuffix(text, q) {
			inner := text[len(q) : len(text)-len(q)]
			if strings.HasPrefix(inner, TagReadOnly) || strings.HasPrefix(inner, TagInvalid) ||
				strings.HasPrefix(inner, TagClarification) || strings.HasPrefix(inner, TagLogicalAnswer) {
				text = strings.TrimSpace(inner)
			}
		}
	}
	return text
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
