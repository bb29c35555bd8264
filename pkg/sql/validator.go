// Package sql classifies, normalizes and verifies model-generated T-SQL.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrExtractionFailed indicates no usable SELECT/WITH statement survived extraction or rewriting.
	ErrExtractionFailed = errors.New("could not isolate a SELECT or WITH statement")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside literals)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)

	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// scanner states shared by every quote-aware pass over T-SQL text.
const (
	stateNormal = iota
	stateSingleQuote
	stateDoubleQuote
	stateBracket
	stateLineComment
	stateBlockComment
)

// segment is a contiguous run of text in one lexical state.
type segment struct {
	state int
	text  string
}

// segments splits T-SQL into code, literal, identifier and comment runs.
func segments(sqlQuery string) []segment {
	out, _ := scan(sqlQuery)
	return out
}

// unterminated reports whether the text ends inside a literal, a quoted
// identifier or a block comment.
func unterminated(sqlQuery string) bool {
	_, final := scan(sqlQuery)
	return final != stateNormal && final != stateLineComment
}

// scan returns the segments and the state the scanner was in at end of input.
// T-SQL has no backslash escapes: a quote inside a literal is written twice,
// which this scanner sees as leaving and immediately re-entering the literal,
// so doubled quotes stay inside one merged segment. Block comments nest, as
// they do in SQL Server.
//
// Every delimiter is ASCII, so the scanner walks bytes and copies them
// verbatim. Segment texts concatenate back to the exact input even when it
// is not valid UTF-8.
func scan(sqlQuery string) ([]segment, int) {
	var out []segment
	var buf strings.Builder
	state := stateNormal
	depth := 0

	flush := func(next int) {
		if buf.Len() > 0 {
			if n := len(out); n > 0 && out[n-1].state == state {
				out[n-1].text += buf.String()
			} else {
				out = append(out, segment{state: state, text: buf.String()})
			}
			buf.Reset()
		}
		state = next
	}

	for i := 0; i < len(sqlQuery); i++ {
		char := sqlQuery[i]
		var next byte
		if i+1 < len(sqlQuery) {
			next = sqlQuery[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case char == '-' && next == '-':
				flush(stateLineComment)
				buf.WriteString("--")
				i++
			case char == '/' && next == '*':
				flush(stateBlockComment)
				depth = 1
				buf.WriteString("/*")
				i++
			case char == '\'':
				flush(stateSingleQuote)
				buf.WriteByte(char)
			case char == '"':
				flush(stateDoubleQuote)
				buf.WriteByte(char)
			case char == '[':
				flush(stateBracket)
				buf.WriteByte(char)
			default:
				buf.WriteByte(char)
			}
		case stateSingleQuote:
			buf.WriteByte(char)
			if char == '\'' {
				flush(stateNormal)
			}
		case stateDoubleQuote:
			buf.WriteByte(char)
			if char == '"' {
				flush(stateNormal)
			}
		case stateBracket:
			buf.WriteByte(char)
			if char == ']' {
				if next == ']' {
					buf.WriteByte(next)
					i++
					continue
				}
				flush(stateNormal)
			}
		case stateLineComment:
			if char == '\n' {
				flush(stateNormal)
				buf.WriteByte(char)
				continue
			}
			buf.WriteByte(char)
		case stateBlockComment:
			buf.WriteByte(char)
			switch {
			case char == '/' && next == '*':
				buf.WriteByte(next)
				i++
				depth++
			case char == '*' && next == '/':
				buf.WriteByte(next)
				i++
				depth--
				if depth == 0 {
					flush(stateNormal)
				}
			}
		}
	}
	final := state
	flush(stateNormal)

	return out, final
}

// StripComments removes line (--) and block (/* */) comments that are not
// inside literals or quoted identifiers. An unterminated block comment
// swallows the rest of the text, matching how SQL Server parses it.
func StripComments(sqlQuery string) string {
	var b strings.Builder
	for _, seg := range segments(sqlQuery) {
		switch seg.state {
		case stateLineComment:
		case stateBlockComment:
			b.WriteByte(' ')
		default:
			b.WriteString(seg.text)
		}
	}
	return b.String()
}

// maskQuoted replaces the contents of literals and quoted identifiers with
// spaces, keeping the delimiters and byte offsets stable so positions found
// in the masked text address the original. Comments are blanked entirely,
// newlines excepted.
func maskQuoted(sqlQuery string) string {
	var b strings.Builder
	b.Grow(len(sqlQuery))
	for _, seg := range segments(sqlQuery) {
		switch seg.state {
		case stateSingleQuote, stateDoubleQuote, stateBracket:
			// Keep the opening delimiter and, if present, the closing one.
			last := len(seg.text) - 1
			if last == 0 || seg.text[last] != closing[seg.state] {
				last = -1
			}
			for i := 0; i < len(seg.text); i++ {
				if i == 0 || i == last {
					b.WriteByte(seg.text[i])
					continue
				}
				b.WriteByte(' ')
			}
		case stateLineComment, stateBlockComment:
			for i := 0; i < len(seg.text); i++ {
				if seg.text[i] == '\n' {
					b.WriteByte('\n')
					continue
				}
				b.WriteByte(' ')
			}
		default:
			b.WriteString(seg.text)
		}
	}
	return b.String()
}

var closing = map[int]byte{
	stateSingleQuote: '\'',
	stateDoubleQuote: '"',
	stateBracket:     ']',
}

// stringLiterals returns the unescaped contents of every single-quoted literal.
func stringLiterals(sqlQuery string) []string {
	var literals []string
	for _, seg := range segments(sqlQuery) {
		if seg.state != stateSingleQuote {
			continue
		}
		inner := strings.TrimPrefix(seg.text, "'")
		inner = strings.TrimSuffix(inner, "'")
		literals = append(literals, strings.ReplaceAll(inner, "''", "'"))
	}
	return literals
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of literals, quoted identifiers and comments.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	return indexSemicolonOutsideStrings(sqlQuery) >= 0
}

// indexSemicolonOutsideStrings returns the byte offset of the first semicolon
// in code text, or -1.
func indexSemicolonOutsideStrings(sqlQuery string) int {
	offset := 0
	for _, seg := range segments(sqlQuery) {
		if seg.state == stateNormal {
			if i := strings.IndexByte(seg.text, ';'); i >= 0 {
				return offset + i
			}
		}
		offset += len(seg.text)
	}
	return -1
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")

	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}

	return sqlQuery
}
