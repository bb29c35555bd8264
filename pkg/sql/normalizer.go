package sql

import (
	"regexp"
	"strings"
)

const identPattern = `((?:\[[^\]]*\]|[A-Za-z_@#][\w@#$]*)(?:\.(?:\[[^\]]*\]|[A-Za-z_@#][\w@#$]*))*)`

// Patterns run against masked text, where every literal is `'` + spaces + `'`,
// so `[^']*` always spans exactly one literal.
var (
	cteDefinition   = regexp.MustCompile(`(?i)(?:\[[^\]]*\]|\b\w+)\s+AS\s*\(`)
	leadingWith     = regexp.MustCompile(`(?i)^\s*WITH\b`)
	whereKeyword    = regexp.MustCompile(`(?i)\bWHERE\b`)
	clauseEnd       = regexp.MustCompile(`(?i)^(ORDER\s+BY|GROUP\s+BY|HAVING|UNION|INTERSECT|EXCEPT)\b`)
	ilikeKeyword    = regexp.MustCompile(`(?i)\bILIKE\b`)
	equalsLiteral   = regexp.MustCompile(identPattern + `(\s*=\s*)(N?'[^']*')`)
	likeLiteral     = regexp.MustCompile(`(?i)` + identPattern + `(\s+(?:NOT\s+)?LIKE\s+)(N?'[^']*')`)
	inLiteralList   = regexp.MustCompile(`(?i)` + identPattern + `(\s+(?:NOT\s+)?IN\s*)\(\s*(N?'[^']*'(?:\s*,\s*N?'[^']*')*)\s*\)`)
	literalItem     = regexp.MustCompile(`N?'[^']*'`)
	defaultTop      = regexp.MustCompile(`(?i)^(\s*SELECT\s+(?:DISTINCT\s+)?)TOP\s*(?:\(\s*100\s*\)|100\b)\s*`)
	countStar       = regexp.MustCompile(`(?i)\bCOUNT\s*\(\s*\*\s*\)(\s*)(,|\bFROM\b)`)
	clauseBeforeAgg = regexp.MustCompile(`(?i)\b(SELECT|FROM|WHERE|ON|HAVING|GROUP\s+BY|ORDER\s+BY)\b`)
	literalKeywords = regexp.MustCompile(`(?i)\b(SELECT|FROM|WHERE|UNION|JOIN)\b`)
	wrapperFuncs    = regexp.MustCompile(`(?i)^(LOWER|UPPER)$`)
)

// Normalize rewrites a generated statement so it behaves the same regardless
// of database collation and of defaults the model tends to add:
//
//   - a missing leading WITH is restored for multi-CTE text,
//   - text comparisons inside WHERE clauses are made case-insensitive,
//   - a TOP 100 the user did not ask for is removed,
//   - an unaliased COUNT(*) in a select list is named "count".
//
// Normalize is pure and idempotent. It returns ErrExtractionFailed when the
// result no longer starts with SELECT or WITH.
func Normalize(sqlQuery, userMessage string) (string, error) {
	out := RepairCTE(strings.TrimSpace(sqlQuery))

	out = replaceMasked(out, ilikeKeyword, func(string, []int) string { return "LIKE" })
	out = rewriteInWhere(out, equalsLiteral, rewriteEquals)
	out = rewriteInWhere(out, likeLiteral, rewriteLike)
	out = rewriteInWhere(out, inLiteralList, rewriteIn)
	out = removeDefaultTop(out, userMessage)
	out = aliasCount(out)

	if !readOnlyPrefix.MatchString(strings.TrimSpace(StripComments(out))) {
		return "", ErrExtractionFailed
	}
	return out, nil
}

// RepairCTE prepends WITH to CTE text whose leading keyword the model dropped:
// text that starts with a bare "name AS (" or defines more than one CTE.
func RepairCTE(sqlQuery string) string {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" || leadingWith.MatchString(trimmed) {
		return trimmed
	}
	masked := maskQuoted(trimmed)
	if headlessCTEStart.MatchString(masked) || len(cteDefinition.FindAllStringIndex(masked, -1)) > 1 {
		return "WITH " + trimmed
	}
	return trimmed
}

// replaceMasked substitutes every match of pattern found in the masked text.
// fn receives the original text and the submatch offsets.
func replaceMasked(sqlQuery string, pattern *regexp.Regexp, fn func(src string, match []int) string) string {
	masked := maskQuoted(sqlQuery)
	matches := pattern.FindAllStringSubmatchIndex(masked, -1)
	if len(matches) == 0 {
		return sqlQuery
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(sqlQuery[last:m[0]])
		b.WriteString(fn(sqlQuery, m))
		last = m[1]
	}
	b.WriteString(sqlQuery[last:])
	return b.String()
}

// rewriteInWhere applies fn to matches that lie wholly inside a WHERE clause.
// Matches elsewhere (select list, JOIN conditions, HAVING) are left alone.
func rewriteInWhere(sqlQuery string, pattern *regexp.Regexp, fn func(src string, match []int) string) string {
	spans := whereSpans(maskQuoted(sqlQuery))
	if len(spans) == 0 {
		return sqlQuery
	}
	return replaceMasked(sqlQuery, pattern, func(src string, m []int) string {
		for _, sp := range spans {
			if m[0] >= sp[0] && m[1] <= sp[1] {
				return fn(src, m)
			}
		}
		return src[m[0]:m[1]]
	})
}

// whereSpans returns the byte ranges of every WHERE clause in masked text.
// A clause ends at a clause keyword at its own nesting depth, at the
// parenthesis that closes its subquery, or at end of text.
func whereSpans(masked string) [][2]int {
	var spans [][2]int
	for _, loc := range whereKeyword.FindAllStringIndex(masked, -1) {
		start := loc[1]
		if n := len(spans); n > 0 && start <= spans[n-1][1] {
			continue
		}
		end := len(masked)
		depth := 0
	scan:
		for i := start; i < len(masked); i++ {
			switch masked[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					end = i
					break scan
				}
			case ';':
				if depth == 0 {
					end = i
					break scan
				}
			default:
				if depth == 0 && (i == 0 || !isWordByte(masked[i-1])) && clauseEnd.MatchString(masked[i:]) {
					end = i
					break scan
				}
			}
		}
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func rewriteEquals(src string, m []int) string {
	column, op, literal := src[m[2]:m[3]], src[m[4]:m[5]], src[m[6]:m[7]]
	if !caseFoldable(column, literal) {
		return src[m[0]:m[1]]
	}
	return "LOWER(" + column + ")" + op + "LOWER(" + literal + ")"
}

func rewriteLike(src string, m []int) string {
	column, op, literal := src[m[2]:m[3]], src[m[4]:m[5]], src[m[6]:m[7]]
	prefix, body := splitLiteral(literal)
	if strings.ContainsAny(body, "%_") || body == "" {
		return src[m[0]:m[1]]
	}
	return column + op + prefix + "'%" + body + "%'"
}

func rewriteIn(src string, m []int) string {
	column, op, list := src[m[2]:m[3]], src[m[4]:m[5]], src[m[6]:m[7]]
	locs := literalItem.FindAllStringIndex(maskQuoted(list), -1)
	if len(locs) == 0 {
		return src[m[0]:m[1]]
	}

	wrapped := make([]string, 0, len(locs))
	foldable := false
	for _, loc := range locs {
		item := list[loc[0]:loc[1]]
		if caseFoldable(column, item) {
			foldable = true
		}
		wrapped = append(wrapped, "LOWER("+item+")")
	}
	if !foldable {
		return src[m[0]:m[1]]
	}
	return "LOWER(" + column + ")" + op + "(" + strings.Join(wrapped, ", ") + ")"
}

// caseFoldable reports whether a column/literal comparison should be lowered.
// Numeric and date-like literals, literals that carry SQL text, and columns
// that are themselves keywords are left as written.
func caseFoldable(column, literal string) bool {
	if wrapperFuncs.MatchString(column) || isKeyword(column) {
		return false
	}
	_, body := splitLiteral(literal)
	return !isNumericLiteral(body) && !literalKeywords.MatchString(body)
}

func splitLiteral(literal string) (prefix, body string) {
	if strings.HasPrefix(literal, "N") || strings.HasPrefix(literal, "n") {
		prefix, literal = literal[:1], literal[1:]
	}
	return prefix, strings.TrimSuffix(strings.TrimPrefix(literal, "'"), "'")
}

func isNumericLiteral(body string) bool {
	digits := strings.NewReplacer(".", "", "-", "", ":", "", " ", "").Replace(body)
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var sqlKeywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "WHERE": true, "ON": true, "WHEN": true,
	"THEN": true, "ELSE": true, "CASE": true, "END": true, "IS": true, "NULL": true,
}

func isKeyword(word string) bool {
	return sqlKeywords[strings.ToUpper(word)]
}

// removeDefaultTop drops a leading TOP 100 unless the user asked for it.
func removeDefaultTop(sqlQuery, userMessage string) string {
	msg := strings.ToLower(userMessage)
	if strings.Contains(msg, "100") || strings.Contains(msg, "hundred") {
		return sqlQuery
	}
	loc := defaultTop.FindStringSubmatchIndex(maskQuoted(sqlQuery))
	if loc == nil {
		return sqlQuery
	}
	rest := sqlQuery[loc[1]:]
	if strings.HasPrefix(strings.ToUpper(rest), "PERCENT") {
		return sqlQuery
	}
	return sqlQuery[loc[2]:loc[3]] + rest
}

// aliasCount names COUNT(*) in a select list. Occurrences in HAVING or
// ORDER BY are left alone because an alias there is a syntax error.
func aliasCount(sqlQuery string) string {
	masked := maskQuoted(sqlQuery)
	return replaceMasked(sqlQuery, countStar, func(src string, m []int) string {
		original := src[m[0]:m[1]]
		clauses := clauseBeforeAgg.FindAllString(masked[:m[0]], -1)
		if len(clauses) == 0 || !strings.EqualFold(clauses[len(clauses)-1], "SELECT") {
			return original
		}
		agg := strings.TrimRight(src[m[0]:m[2]], " \t\r\n")
		return agg + " as count" + src[m[2]:m[3]] + src[m[4]:m[5]]
	})
}
