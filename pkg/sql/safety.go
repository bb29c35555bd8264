package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of Verify. Keyword names the offending construct when known.
type Verdict struct {
	ReadOnly bool
	Reason   string
	Keyword  string
	// Injection is set when a string literal matched libinjection.
	Injection bool
}

// denyRule matches one forbidden construct in comment-stripped, quote-masked SQL.
type denyRule struct {
	keyword string
	pattern *regexp.Regexp
}

func wordRule(keyword string) denyRule {
	parts := strings.Fields(keyword)
	return denyRule{
		keyword: keyword,
		pattern: regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`),
	}
}

func prefixRule(prefix string) denyRule {
	return denyRule{
		keyword: prefix,
		pattern: regexp.MustCompile(`(?i)\b` + prefix + `\w*`),
	}
}

// denyList is checked in order; multi-word entries come before their
// single-word prefixes so the reported keyword is the most specific one.
var denyList = []denyRule{
	wordRule("BULK INSERT"),
	wordRule("CREATE TABLE"),
	wordRule("CREATE INDEX"),
	wordRule("CREATE VIEW"),
	wordRule("CREATE PROCEDURE"),
	wordRule("CREATE FUNCTION"),
	wordRule("DELETE"),
	wordRule("TRUNCATE"),
	wordRule("DROP"),
	wordRule("INSERT"),
	wordRule("UPDATE"),
	wordRule("ALTER"),
	wordRule("CREATE"),
	wordRule("EXEC"),
	wordRule("EXECUTE"),
	prefixRule("SP_"),
	prefixRule("XP_"),
	wordRule("GRANT"),
	wordRule("REVOKE"),
	wordRule("DENY"),
	wordRule("MERGE"),
	wordRule("BACKUP"),
	wordRule("RESTORE"),
	wordRule("DBCC"),
	// SELECT ... INTO creates a table.
	wordRule("INTO"),
	wordRule("OPENROWSET"),
	wordRule("OPENQUERY"),
	wordRule("OPENDATASOURCE"),
	wordRule("SHUTDOWN"),
	wordRule("KILL"),
	wordRule("WAITFOR"),
}

var readOnlyPrefix = regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)

// Verify decides whether sqlQuery is a single read-only SELECT or CTE.
// It trusts nothing upstream: comments are stripped, literals and quoted
// identifiers are masked, and the remaining code text is checked against the
// deny-list. Literals that carry statement punctuation are screened with
// libinjection.
func Verify(sqlQuery string) Verdict {
	if unterminated(sqlQuery) {
		return reject("Unterminated string, identifier or comment.", "")
	}

	stripped := strings.TrimSpace(StripComments(sqlQuery))
	if stripped == "" {
		return reject("Empty query.", "")
	}

	if !readOnlyPrefix.MatchString(stripped) {
		return reject("Only SELECT queries are allowed. You have read-only access to the database.", "")
	}

	code := maskQuoted(stripped)
	for _, rule := range denyList {
		if rule.pattern.MatchString(code) {
			return reject(
				fmt.Sprintf("Write operations like '%s' are not allowed. You have read-only access to the database.", rule.keyword),
				rule.keyword,
			)
		}
	}

	if result := ValidateAndNormalize(stripped); result.Error != nil {
		return reject("Multiple statements are not allowed. You have read-only access to the database.", ";")
	}

	if finding := InspectLiterals(stripped); finding != nil {
		v := reject(
			fmt.Sprintf("String literal matches an injection pattern (%s).", finding.Fingerprint),
			finding.Fingerprint,
		)
		v.Injection = true
		return v
	}

	return Verdict{ReadOnly: true}
}

func reject(reason, keyword string) Verdict {
	return Verdict{ReadOnly: false, Reason: reason, Keyword: keyword}
}
