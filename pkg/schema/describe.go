package schema

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// descriptionRule maps a column-name keyword to a canned phrase.
// Rules with subject qualify the phrase with the table's entity name.
type descriptionRule struct {
	keyword string
	suffix  bool
	phrase  string
	subject bool
}

// descriptionRules are checked in order; the first match wins, so longer
// keywords precede the shorter ones they contain.
var descriptionRules = []descriptionRule{
	{keyword: "selling_price", phrase: "Selling price"},
	{keyword: "purchase_price", phrase: "Purchase price"},
	{keyword: "landed_cost", phrase: "Landed cost"},
	{keyword: "unit_cost", phrase: "Unit cost"},
	{keyword: "fob", phrase: "Free-on-board cost"},
	{keyword: "price", phrase: "Price"},
	{keyword: "cost", phrase: "Cost"},
	{keyword: "amount", phrase: "Amount"},
	{keyword: "total", phrase: "Total value"},
	{keyword: "qty", phrase: "Quantity"},
	{keyword: "quantity", phrase: "Quantity"},
	{keyword: "stock", phrase: "Stock quantity on hand"},
	{keyword: "created_date", phrase: "Date the record was created"},
	{keyword: "created_at", phrase: "Date the record was created"},
	{keyword: "modified", phrase: "Date the record was last modified"},
	{keyword: "updated", phrase: "Date the record was last updated"},
	{keyword: "date", phrase: "Date"},
	{keyword: "email", phrase: "Email address"},
	{keyword: "phone", phrase: "Phone number"},
	{keyword: "status", phrase: "Status"},
	{keyword: "code", phrase: "code", subject: true},
	{keyword: "desc", phrase: "description", subject: true},
	{keyword: "name", phrase: "name", subject: true},
	{keyword: "_id", suffix: true, phrase: "identifier", subject: true},
}

// Describe synthesizes a human-readable description for a column from
// naming conventions. A code-like column in EDC_PRODUCT becomes
// "Product code"; unrecognized names are humanized.
func Describe(table, column string) string {
	lower := strings.ToLower(column)
	if lower == "id" {
		lower = "_id"
	}

	for _, rule := range descriptionRules {
		matched := strings.Contains(lower, rule.keyword)
		if rule.suffix {
			matched = strings.HasSuffix(lower, rule.keyword)
		}
		if !matched {
			continue
		}
		if !rule.subject {
			return rule.phrase
		}
		if subject := columnSubject(table, column); subject != "" {
			return subject + " " + rule.phrase
		}
		return capitalize(rule.phrase)
	}

	return humanizeColumn(column)
}

// columnSubject returns the humanized entity name of table when column
// belongs to it. A column prefix such as BR_ in EDC_PRODUCT refers to a
// different entity and yields "".
func columnSubject(table, column string) string {
	subject := tableSubject(table)
	if subject == "" {
		return ""
	}
	if prefix, _, ok := strings.Cut(column, "_"); ok && isAbbreviation(prefix) {
		if !abbreviates(strings.ToLower(prefix), strings.ToLower(subject)) {
			return ""
		}
	}
	return capitalize(subject)
}

// tableSubject turns a table name into a singular lower-case entity:
// EDC_PRODUCT -> "product", dbo.OrderItems -> "order item".
func tableSubject(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	table = strings.Trim(table, "[]")

	words := splitWords(table)
	// Drop short system prefixes like EDC_ or TBL_ when a real word follows.
	for len(words) > 1 && len(words[0]) <= 3 {
		words = words[1:]
	}
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = inflection.Singular(words[len(words)-1])
	return strings.Join(words, " ")
}

// humanizeColumn renders PR_COLOR_NAME as "Color name".
func humanizeColumn(column string) string {
	words := splitWords(column)
	if len(words) > 1 && isAbbreviation(words[0]) {
		words = words[1:]
	}
	return capitalize(strings.Join(words, " "))
}

// splitWords breaks an identifier on underscores and lower-to-upper case
// transitions, returning lower-case words.
func splitWords(s string) []string {
	var words []string
	var current []rune
	runes := []rune(s)
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == ' ' || r == '-':
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}

func isAbbreviation(word string) bool {
	return len(word) >= 2 && len(word) <= 3
}

// abbreviates reports whether abbr is an in-order subsequence of word
// sharing its first letter: "pr" for product, "ct" for category.
func abbreviates(abbr, word string) bool {
	if abbr == "" || word == "" || abbr[0] != word[0] {
		return false
	}
	i := 0
	for j := 0; j < len(word) && i < len(abbr); j++ {
		if word[j] == abbr[i] {
			i++
		}
	}
	return i == len(abbr)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
