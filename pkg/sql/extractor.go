package sql

import (
	"regexp"
	"strings"
)

var (
	withStartUpper     = regexp.MustCompile(`\bWITH\s+(?:\[[^\]]+\]|\w+)(?:\s*\([^)]*\))?\s+AS\s*\(`)
	withStartAnyCase   = regexp.MustCompile(`(?i)\bwith\s+(?:\[[^\]]+\]|\w+)(?:\s*\([^)]*\))?\s+as\s*\(`)
	selectStartUpper   = regexp.MustCompile(`\bSELECT\b`)
	selectStartAnyCase = regexp.MustCompile(`(?i)\bselect\b`)
	headlessCTEStart   = regexp.MustCompile(`(?i)^(?:\[[^\]]+\]|\w+)\s+AS\s*\(\s*SELECT\b`)

	// Long keywords are safe to match case-insensitively in prose; short ones
	// are ordinary English and only count when written as SQL.
	lineKeywordsLong  = regexp.MustCompile(`(?i)\b(SELECT|FROM|WHERE|JOIN|GROUP\s+BY|ORDER\s+BY|HAVING|UNION|INTERSECT|EXCEPT|DISTINCT|BETWEEN|INNER|OUTER|CROSS|COALESCE|CAST|CONVERT|COUNT|SUM|AVG)\b`)
	lineKeywordsShort = regexp.MustCompile(`\b(AS|ON|IN|IS|OR|AND|NOT|BY|ASC|DESC|TOP|MAX|MIN|LIKE|NULL|CASE|WHEN|THEN|ELSE|END|LEFT|RIGHT|FULL|WITH|OVER|PARTITION)\b`)
	lineSymbols       = regexp.MustCompile(`[\[\]()=<>*]`)
	lineSingleToken   = regexp.MustCompile(`^[\w.\[\]@#$]+,?$`)

	proseStarters = []string{
		"there are", "there is", "the query", "this query", "this will", "this returns",
		"this sql", "the result", "the above", "explanation", "note:", "warning:", "error:",
		"here is", "here's", "it will", "i have", "i've",
	}
)

// ExtractSQL isolates the statement embedded in a model completion.
//
// It slices from the first primary WITH or SELECT keyword. A semicolon
// outside literals ends the statement. Lines are then accepted until the
// first one that does not look like SQL, which drops trailing explanations
// without cutting multi-line SQL.
func ExtractSQL(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	start := findStatementStart(text)
	if start < 0 {
		return ""
	}
	sqlPart := text[start:]
	upperStyle := strings.HasPrefix(sqlPart, "SELECT") || strings.HasPrefix(sqlPart, "WITH") ||
		(start == 0 && headlessCTEStart.MatchString(sqlPart))

	if idx := indexSemicolonOutsideStrings(sqlPart); idx >= 0 {
		sqlPart = sqlPart[:idx+1]
	}

	var accepted []string
	for _, line := range strings.Split(sqlPart, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if len(accepted) > 0 && !looksLikeSQLLine(trimmed, upperStyle) {
			break
		}
		accepted = append(accepted, strings.TrimRight(line, " \t\r"))
	}

	return strings.TrimSpace(strings.Join(accepted, "\n"))
}

// findStatementStart returns the offset of the earliest statement keyword.
// Upper-case keywords are preferred so prose such as "select the rows with"
// does not hide the real statement that follows it.
func findStatementStart(text string) int {
	if headlessCTEStart.MatchString(text) {
		return 0
	}
	if idx := earliest(text, withStartUpper, selectStartUpper); idx >= 0 {
		return idx
	}
	return earliest(text, withStartAnyCase, selectStartAnyCase)
}

func earliest(text string, patterns ...*regexp.Regexp) int {
	best := -1
	for _, p := range patterns {
		if loc := p.FindStringIndex(text); loc != nil && (best < 0 || loc[0] < best) {
			best = loc[0]
		}
	}
	return best
}

func looksLikeSQLLine(line string, upperStyle bool) bool {
	lower := strings.ToLower(line)
	for _, starter := range proseStarters {
		if strings.HasPrefix(lower, starter) {
			return false
		}
	}

	switch {
	case lineKeywordsLong.MatchString(line):
		return true
	case upperStyle && lineKeywordsShort.MatchString(line):
		return true
	case !upperStyle && lineKeywordsShort.MatchString(strings.ToUpper(line)):
		return true
	case lineSymbols.MatchString(line):
		return true
	case strings.HasPrefix(line, ",") || strings.HasSuffix(line, ","):
		return true
	case lineSingleToken.MatchString(line):
		return true
	}
	return false
}
