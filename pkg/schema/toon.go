package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// toonFields is the column field order of every TOON table header.
var toonFields = []string{"name", "type", "nullable", "max_length", "description"}

const toonNull = "null"

var toonHeader = regexp.MustCompile(`^(.+)\[(\d+)\]\{([^}]*)\}:$`)

// ErrMalformedTOON is returned by ParseTOON for text FormatTOON cannot produce.
var ErrMalformedTOON = errors.New("malformed TOON schema")

// FormatTOON renders the descriptor in token-oriented notation:
//
//	EDC_BRAND[2]{name, type, nullable, max_length, description}:
//	  BR_CODE, nvarchar, false, 10, Brand code
//	  BR_DESC, nvarchar, true, 100, Brand description
//
// Tables are separated by one blank line. Tables without columns are omitted.
func FormatTOON(d Descriptor) string {
	blocks := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		if len(t.Columns) == 0 {
			continue
		}
		blocks = append(blocks, formatTOONTable(t))
	}
	return strings.Join(blocks, "\n\n")
}

func formatTOONTable(t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", t.Name, len(t.Columns), strings.Join(toonFields, ", "))
	for _, c := range t.Columns {
		maxLength := toonNull
		if c.MaxLength != nil {
			maxLength = strconv.Itoa(*c.MaxLength)
		}
		values := []string{
			quoteTOON(c.Name),
			quoteTOON(c.Type),
			strconv.FormatBool(c.Nullable),
			maxLength,
			quoteTOON(c.Description),
		}
		b.WriteString("\n  ")
		b.WriteString(strings.Join(values, ", "))
	}
	return b.String()
}

// quoteTOON renders a string value. Empty strings become null; values that
// would not survive a plain split are double-quoted.
func quoteTOON(s string) string {
	if s == "" {
		return toonNull
	}
	if s == toonNull || s != strings.TrimSpace(s) || strings.ContainsAny(s, ",\n\r\"") {
		return strconv.Quote(s)
	}
	return s
}

// ParseTOON reads text produced by FormatTOON back into a descriptor.
func ParseTOON(text string) (Descriptor, error) {
	var d Descriptor
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}

		m := toonHeader.FindStringSubmatch(line)
		if m == nil {
			return Descriptor{}, fmt.Errorf("%w: line %d: expected table header", ErrMalformedTOON, i+1)
		}
		count, err := strconv.Atoi(m[2])
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: line %d: %v", ErrMalformedTOON, i+1, err)
		}
		if fields := splitFieldList(m[3]); strings.Join(fields, ",") != strings.Join(toonFields, ",") {
			return Descriptor{}, fmt.Errorf("%w: line %d: unsupported fields %q", ErrMalformedTOON, i+1, m[3])
		}

		table := Table{Name: m[1], Columns: make([]Column, 0, count)}
		for n := 0; n < count; n++ {
			i++
			if i >= len(lines) || !strings.HasPrefix(lines[i], "  ") {
				return Descriptor{}, fmt.Errorf("%w: table %s: expected %d rows, got %d", ErrMalformedTOON, table.Name, count, n)
			}
			col, err := parseTOONRow(lines[i][2:])
			if err != nil {
				return Descriptor{}, fmt.Errorf("%w: line %d: %v", ErrMalformedTOON, i+1, err)
			}
			table.Columns = append(table.Columns, col)
		}
		d.Tables = append(d.Tables, table)
	}

	return d, nil
}

func splitFieldList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseTOONRow(row string) (Column, error) {
	values, err := splitTOONValues(row)
	if err != nil {
		return Column{}, err
	}
	if len(values) != len(toonFields) {
		return Column{}, fmt.Errorf("expected %d values, got %d", len(toonFields), len(values))
	}

	col := Column{
		Name:        values[0].text(),
		Type:        values[1].text(),
		Description: values[4].text(),
	}
	if col.Nullable, err = strconv.ParseBool(values[2].raw); err != nil {
		return Column{}, fmt.Errorf("nullable: %w", err)
	}
	if !values[3].isNull() {
		n, err := strconv.Atoi(values[3].raw)
		if err != nil {
			return Column{}, fmt.Errorf("max_length: %w", err)
		}
		col.MaxLength = &n
	}
	return col, nil
}

type toonValue struct {
	raw    string
	quoted bool
}

func (v toonValue) isNull() bool {
	return !v.quoted && v.raw == toonNull
}

func (v toonValue) text() string {
	if v.isNull() {
		return ""
	}
	return v.raw
}

// splitTOONValues splits a row on ", " separators outside double quotes.
func splitTOONValues(row string) ([]toonValue, error) {
	var values []toonValue
	rest := row
	for {
		var v toonValue
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("bad quoted value: %w", err)
			}
			unquoted, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, err
			}
			v = toonValue{raw: unquoted, quoted: true}
			rest = rest[len(quoted):]
		} else {
			end := strings.Index(rest, ", ")
			if end < 0 {
				end = len(rest)
			}
			v = toonValue{raw: rest[:end]}
			rest = rest[end:]
		}
		values = append(values, v)

		if rest == "" {
			return values, nil
		}
		if !strings.HasPrefix(rest, ", ") {
			return nil, fmt.Errorf("expected separator at %q", rest)
		}
		rest = rest[2:]
	}
}

// TruncateTOON keeps whole tables from the start of text while the result
// fits in budget characters. The first table is always kept, even when it
// alone exceeds the budget.
func TruncateTOON(text string, budget int) string {
	if utf8.RuneCountInString(text) <= budget {
		return text
	}

	blocks := strings.Split(text, "\n\n")
	kept := blocks[0]
	size := utf8.RuneCountInString(kept)
	for _, block := range blocks[1:] {
		size += 2 + utf8.RuneCountInString(block)
		if size > budget {
			break
		}
		kept += "\n\n" + block
	}
	return kept
}
