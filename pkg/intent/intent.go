// Package intent screens chat messages before any model call. It rejects
// small talk and explicit write syntax; the SQL safety gate remains the
// enforcement point.
package intent

import (
	"regexp"
	"strings"
)

// Reason explains why a message was blocked.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEmpty       Reason = "empty"
	ReasonGreeting    Reason = "greeting"
	ReasonNotQuery    Reason = "not_query"
	ReasonWriteSyntax Reason = "write_syntax"
	ReasonProcedure   Reason = "procedure"
)

// Verdict is the pre-filter outcome. Keyword names the matched write
// construct for ReasonWriteSyntax and ReasonProcedure.
type Verdict struct {
	Blocked bool
	Reason  Reason
	Keyword string
}

// IsWriteIntent reports whether the block is a read-only violation rather
// than a non-query.
func (v Verdict) IsWriteIntent() bool {
	return v.Reason == ReasonWriteSyntax || v.Reason == ReasonProcedure
}

var greetings = map[string]struct{}{
	"hello": {}, "hi": {}, "hey": {}, "thanks": {}, "thank you": {},
	"bye": {}, "goodbye": {}, "gg": {}, "lol": {}, "haha": {},
	"ok": {}, "okay": {}, "yes": {}, "no": {}, "maybe": {},
}

// databaseWords mark a short message as a plausible data question.
var databaseWords = []string{
	"show", "list", "get", "find", "select", "count", "how many", "what", "which",
	"where", "who", "when", "display", "fetch", "retrieve", "query", "search",
	"filter", "sort", "order", "group", "sum", "average", "avg", "max", "min",
	"all", "top", "bottom", "first", "last", "users", "customers", "orders",
	"products", "data", "table", "records", "rows", "columns", "brand", "category",
	"product", "stock",
}

type writePattern struct {
	keyword string
	re      *regexp.Regexp
}

// writeSyntax matches SQL-shaped write statements anywhere in the message.
// Bare verbs inside questions ("show deleted records") do not match.
var writeSyntax = []writePattern{
	{"DELETE FROM", regexp.MustCompile(`(?i)\bdelete\s+from\b`)},
	{"UPDATE", regexp.MustCompile(`(?i)\bupdate\s+(?:\[[^\]]+\]|[\w.]+)\s+set\b`)},
	{"INSERT INTO", regexp.MustCompile(`(?i)\binsert\s+into\b`)},
	{"TRUNCATE TABLE", regexp.MustCompile(`(?i)\btruncate\s+table\b`)},
	{"DROP TABLE", regexp.MustCompile(`(?i)\bdrop\s+table\b`)},
	{"DROP DATABASE", regexp.MustCompile(`(?i)\bdrop\s+database\b`)},
	{"ALTER TABLE", regexp.MustCompile(`(?i)\balter\s+table\b`)},
	{"MERGE INTO", regexp.MustCompile(`(?i)\bmerge\s+into\b`)},
}

var (
	// imperativeWrite catches commands such as "delete all brands" that open
	// with a write verb. The verb must stand alone, so "drop-off rate" and
	// "updated prices" are questions; the second group is the word after it.
	imperativeWrite = regexp.MustCompile(`(?i)^(?:please\s+)?(delete|remove|erase|drop|truncate|insert|update|modify|alter|grant|revoke|destroy)(?:\s+(\S+)|$)`)

	procedureCall = regexp.MustCompile(`(?i)\bexec(?:ute)?\s+(?:sp|xp)_\w+`)
)

// Classify screens a single chat message.
func Classify(message string) Verdict {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if len([]rune(normalized)) < 3 {
		return Verdict{Blocked: true, Reason: ReasonEmpty}
	}

	if _, ok := greetings[strings.TrimRight(normalized, "!.? ")]; ok {
		return Verdict{Blocked: true, Reason: ReasonGreeting}
	}

	for _, p := range writeSyntax {
		if p.re.MatchString(normalized) {
			return Verdict{Blocked: true, Reason: ReasonWriteSyntax, Keyword: p.keyword}
		}
	}

	if strings.HasPrefix(normalized, "execute") {
		// "Execute this query: SELECT ..." is a UI affordance for running a
		// shown statement.
		if strings.Contains(normalized, "select") && strings.Contains(normalized, "query") {
			return Verdict{}
		}
		if strings.Contains(normalized, "procedure") || strings.Contains(normalized, "exec") {
			return Verdict{Blocked: true, Reason: ReasonProcedure, Keyword: "EXECUTE"}
		}
	}

	if procedureCall.MatchString(normalized) {
		return Verdict{Blocked: true, Reason: ReasonProcedure, Keyword: "EXEC"}
	}

	if m := imperativeWrite.FindStringSubmatch(normalized); m != nil && !reportingObject[strings.Trim(m[2], ",.!?")] {
		return Verdict{Blocked: true, Reason: ReasonWriteSyntax, Keyword: strings.ToUpper(m[1])}
	}

	if len(normalized) < 10 && !containsAny(normalized, databaseWords) {
		return Verdict{Blocked: true, Reason: ReasonNotQuery}
	}

	return Verdict{}
}

// reportingObject words after a write verb turn it into a request for
// information: "update me on sales this month".
var reportingObject = map[string]bool{
	"me": true, "us": true, "myself": true, "everyone": true, "on": true, "about": true,
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
