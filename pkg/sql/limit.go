package sql

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	selectKeyword   = regexp.MustCompile(`(?i)^SELECT\b`)
	selectModifiers = regexp.MustCompile(`(?i)^\s+(?:DISTINCT|ALL)\b`)
	topAfterSelect  = regexp.MustCompile(`(?i)^\s+(?:(?:DISTINCT|ALL)\s+)?TOP\b`)
	offsetFetch     = regexp.MustCompile(`(?i)^OFFSET\s+\S+\s+ROWS?\b`)
	orderByKeyword  = regexp.MustCompile(`(?i)^ORDER\s+BY\b`)
)

// mainSelectIndex returns the byte offset of the SELECT that produces the
// result set: the first SELECT at parenthesis depth zero. For a CTE that is
// the statement after the definitions. Returns -1 when there is none.
func mainSelectIndex(masked string) int {
	return depthZeroMatch(masked, selectKeyword)
}

// HasLimiter reports whether the main SELECT already limits its rows with TOP
// or OFFSET/FETCH.
func HasLimiter(sqlQuery string) bool {
	masked := maskQuoted(sqlQuery)
	idx := mainSelectIndex(masked)
	if idx < 0 {
		return false
	}
	if topAfterSelect.MatchString(masked[idx+len("SELECT"):]) {
		return true
	}
	return depthZeroMatch(masked, offsetFetch) >= 0
}

// InjectTop limits the main SELECT to n rows. Statements that already carry a
// limiter, or a non-positive n, are returned unchanged apart from a trailing
// semicolon being dropped.
func InjectTop(sqlQuery string, n int) string {
	sqlQuery = stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if n <= 0 || HasLimiter(sqlQuery) {
		return sqlQuery
	}
	masked := maskQuoted(sqlQuery)
	idx := mainSelectIndex(masked)
	if idx < 0 {
		return sqlQuery
	}

	insertAt := idx + len("SELECT")
	if loc := selectModifiers.FindStringIndex(masked[insertAt:]); loc != nil {
		insertAt += loc[1]
	}
	return sqlQuery[:insertAt] + fmt.Sprintf(" TOP (%d)", n) + sqlQuery[insertAt:]
}

// CountQuery wraps a statement so it returns the total row count. CTEs cannot
// be wrapped in a derived table and return false. A top-level ORDER BY is
// dropped because SQL Server rejects it in a derived table without TOP.
func CountQuery(sqlQuery string) (string, bool) {
	sqlQuery = stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if sqlQuery == "" || leadingWith.MatchString(sqlQuery) {
		return "", false
	}

	masked := maskQuoted(sqlQuery)
	idx := mainSelectIndex(masked)
	if idx < 0 {
		return "", false
	}
	if !topAfterSelect.MatchString(masked[idx+len("SELECT"):]) {
		if cut := depthZeroMatch(masked, orderByKeyword); cut >= 0 {
			sqlQuery = strings.TrimSpace(sqlQuery[:cut])
		}
	}
	return "SELECT COUNT(*) FROM (" + sqlQuery + ") AS subquery", true
}

// depthZeroMatch returns the offset of the first match of an anchored
// pattern outside parentheses, or -1.
func depthZeroMatch(masked string, pattern *regexp.Regexp) int {
	depth := 0
	for i := 0; i < len(masked); i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && (i == 0 || !isWordByte(masked[i-1])) && pattern.MatchString(masked[i:]) {
				return i
			}
		}
	}
	return -1
}
