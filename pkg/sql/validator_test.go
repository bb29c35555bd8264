package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAndNormalize_ValidQueries(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple select without semicolon", input: "SELECT 1", expected: "SELECT 1"},
		{name: "trailing semicolon", input: "SELECT 1;", expected: "SELECT 1"},
		{name: "trailing semicolon and whitespace", input: "  SELECT 1;  ", expected: "SELECT 1"},
		{name: "semicolon inside literal", input: "SELECT * FROM EDC_BRAND WHERE BR_DESC = 'a;b'", expected: "SELECT * FROM EDC_BRAND WHERE BR_DESC = 'a;b'"},
		{name: "semicolon inside bracket identifier", input: "SELECT [odd;name] FROM T;", expected: "SELECT [odd;name] FROM T"},
		{name: "doubled quote", input: "SELECT * FROM T WHERE N = 'O''Brien'", expected: "SELECT * FROM T WHERE N = 'O''Brien'"},
		{name: "semicolon in comment", input: "SELECT 1 -- a; b", expected: "SELECT 1 -- a; b"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAndNormalize(tt.input)
			assert.NoError(t, result.Error)
			assert.Equal(t, tt.expected, result.NormalizedSQL)
		})
	}
}

func TestValidateAndNormalize_MultipleStatements(t *testing.T) {
	inputs := []string{
		"SELECT 1; SELECT 2",
		"SELECT 1;SELECT 2;",
		"SELECT 1; DROP TABLE EDC_BRAND",
		"SELECT * FROM T WHERE 1=1; DELETE FROM T",
		"SELECT 'a;b'; SELECT 1",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			result := ValidateAndNormalize(input)
			assert.ErrorIs(t, result.Error, ErrMultipleStatements)
		})
	}
}

func TestHasSemicolonOutsideStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "no semicolons", input: "SELECT 1", expected: false},
		{name: "statement separator", input: "SELECT 1; SELECT 2", expected: true},
		{name: "inside single quotes", input: "SELECT 'a;b'", expected: false},
		{name: "inside double quotes", input: `SELECT "a;b"`, expected: false},
		{name: "inside brackets", input: "SELECT [a;b]", expected: false},
		{name: "inside escaped bracket", input: "SELECT [a]];b]", expected: false},
		{name: "doubled quote keeps literal open", input: "SELECT 'it''s;here'", expected: false},
		// T-SQL has no backslash escapes; the literal closes after the backslash.
		{name: "backslash does not escape", input: `SELECT 'test\';more'`, expected: true},
		{name: "inside block comment", input: "SELECT 1 /* ; */", expected: false},
		{name: "inside line comment", input: "SELECT 1 -- ;", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, hasSemicolonOutsideStrings(tt.input))
		})
	}
}

func TestIndexSemicolonOutsideStrings(t *testing.T) {
	assert.Equal(t, -1, indexSemicolonOutsideStrings("SELECT 'x;y'"))
	assert.Equal(t, 15, indexSemicolonOutsideStrings("SELECT 'ü;x' A;"))
	assert.Equal(t, 8, indexSemicolonOutsideStrings("SELECT 1; SELECT 2"))
}

func TestStripTrailingSemicolon(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "SELECT 1", expected: "SELECT 1"},
		{input: "SELECT 1;", expected: "SELECT 1"},
		{input: "SELECT 1 ;  \n", expected: "SELECT 1"},
		{input: "SELECT 1;;", expected: "SELECT 1;"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripTrailingSemicolon(tt.input), tt.input)
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "line comment", input: "SELECT * FROM T -- DROP TABLE T", expected: "SELECT * FROM T "},
		{name: "block comment", input: "/* SELECT 1 */ DELETE FROM T", expected: "  DELETE FROM T"},
		{name: "comment marker inside literal", input: "SELECT '--x' FROM T", expected: "SELECT '--x' FROM T"},
		{name: "block marker inside brackets", input: "SELECT [/*a*/] FROM T", expected: "SELECT [/*a*/] FROM T"},
		{name: "line comment keeps newline", input: "SELECT 1 -- c\nFROM T", expected: "SELECT 1 \nFROM T"},
		{name: "unterminated block swallows rest", input: "SELECT 1 /* DROP", expected: "SELECT 1  "},
		{name: "nested block comment", input: "SELECT 1 /* a /* b */ ' DROP */ FROM T", expected: "SELECT 1   FROM T"},
		{name: "nested block opener swallows rest", input: "SELECT 1 /* /* */ ' */ DROP", expected: "SELECT 1   DROP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripComments(tt.input))
		})
	}
}

func TestMaskQuoted_PreservesOffsets(t *testing.T) {
	input := "SELECT [Größe], N'café ; DROP' FROM T -- note"
	masked := maskQuoted(input)

	assert.Len(t, masked, len(input))
	assert.NotContains(t, masked, "DROP")
	assert.NotContains(t, masked, "note")
	assert.Equal(t, "SELECT [", masked[:8])
	assert.Contains(t, masked, " FROM T ")
}

func TestMaskQuoted_InvalidUTF8(t *testing.T) {
	input := "SELECT '\xff\xfe' AS a, [\xc3] FROM T -- \xe2\x82"
	masked := maskQuoted(input)

	assert.Len(t, masked, len(input))
	assert.Equal(t, "SELECT '  ' AS a, [ ] FROM T      ", masked)
}

func TestScan_RoundTripsBytes(t *testing.T) {
	inputs := []string{
		"SELECT '\xff' FROM T /* \xfe /* \xfd */ */ WHERE A = [\x80]",
		"SELECT N'café' -- \xff",
		"SELECT 'open \xff",
	}

	for _, input := range inputs {
		segs, _ := scan(input)
		var b strings.Builder
		for _, seg := range segs {
			b.WriteString(seg.text)
		}
		assert.Equal(t, input, b.String())
	}
}

func TestIndexSemicolonOutsideStrings_InvalidUTF8(t *testing.T) {
	input := "SELECT '\xff;' FROM T \xfe; rest"
	idx := indexSemicolonOutsideStrings(input)
	if assert.GreaterOrEqual(t, idx, 0) {
		assert.Equal(t, byte(';'), input[idx])
		assert.Equal(t, "SELECT '\xff;' FROM T \xfe;", input[:idx+1])
	}
}

func TestUnterminated(t *testing.T) {
	assert.False(t, unterminated("SELECT 'a''b'"))
	assert.False(t, unterminated("SELECT 1 -- open"))
	assert.True(t, unterminated("SELECT 'a''"))
	assert.True(t, unterminated("SELECT [a"))
	assert.True(t, unterminated("SELECT 1 /* x"))
	assert.True(t, unterminated("SELECT 1 /* a /* b */"))
	assert.False(t, unterminated("SELECT 1 /* a /* b */ */"))
}

func TestStringLiterals(t *testing.T) {
	literals := stringLiterals("SELECT * FROM T WHERE A = 'O''Brien' AND B = N'x' -- 'ignored'")
	assert.Equal(t, []string{"O'Brien", "x"}, literals)
}
