package sql

import (
	"regexp"

	libinjection "github.com/corazawaf/libinjection-go"
)

// Only literals that carry statement punctuation are worth a libinjection
// pass; plain values such as O'Brien or %UPDATED% produce false positives.
var suspiciousLiteral = regexp.MustCompile(`(?i)(;|--|/\*|'\s*(OR|AND|UNION|SELECT)\b)`)

// LiteralFinding is a string literal that libinjection fingerprinted as SQL.
type LiteralFinding struct {
	Literal     string
	Fingerprint string
}

// Fingerprint returns the libinjection fingerprint of value and whether it
// was classified as SQL injection.
func Fingerprint(value string) (string, bool) {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	return string(fingerprint), isSQLi
}

// InspectLiterals screens the single-quoted literals of sqlQuery and returns
// the first one libinjection flags, or nil.
//
//	InspectLiterals("SELECT * FROM T WHERE A = 'SAS'")            // nil
//	InspectLiterals("SELECT * FROM T WHERE A = '''; DROP TABLE T--'") // finding
func InspectLiterals(sqlQuery string) *LiteralFinding {
	for _, literal := range stringLiterals(sqlQuery) {
		if !suspiciousLiteral.MatchString(literal) {
			continue
		}
		if fingerprint, ok := Fingerprint(literal); ok {
			return &LiteralFinding{Literal: literal, Fingerprint: fingerprint}
		}
	}
	return nil
}
