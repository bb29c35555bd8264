package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify_Accepts(t *testing.T) {
	inputs := []string{
		"SELECT * FROM EDC_BRAND",
		"select * from EDC_BRAND;",
		"SELECT * FROM T WHERE DESC LIKE '%UPDATED%'",
		"SELECT PR_UPDATED_DATE, PR_CREATED_DATE FROM EDC_PRODUCT",
		"SELECT * FROM T -- DROP TABLE T",
		"SELECT * FROM T /* DELETE FROM T */ WHERE A = 1",
		"SELECT * FROM T /* outer /* DROP TABLE T */ still a comment */ WHERE A = 1",
		"SELECT * FROM T WHERE A = '\xff\xfe'",
		"SELECT 'DROP TABLE T' AS note FROM T",
		"SELECT [DELETE] FROM T",
		"WITH cte AS (SELECT BR_CODE FROM EDC_BRAND) SELECT * FROM cte",
		"SELECT LOWER(BR_DESC) FROM EDC_BRAND WHERE LOWER(BR_DESC) = LOWER('Sas')",
		"SELECT * FROM T WHERE NAME = 'O''Brien'",
		"SELECT SPARE_PART FROM T",
		"\n  SELECT 1  \n",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			verdict := Verify(input)
			assert.True(t, verdict.ReadOnly, verdict.Reason)
			assert.Empty(t, verdict.Reason)
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		keyword string
	}{
		{name: "stacked drop", input: "SELECT * FROM T; DROP TABLE T", keyword: "DROP"},
		{name: "delete hidden after block comment", input: "/* SELECT 1 */ DELETE FROM T", keyword: ""},
		{name: "delete statement", input: "DELETE FROM T", keyword: ""},
		{name: "update via cte", input: "WITH c AS (SELECT 1 AS x) UPDATE T SET A = 1", keyword: "UPDATE"},
		{name: "select into", input: "SELECT * INTO NEW_T FROM T", keyword: "INTO"},
		{name: "exec", input: "SELECT 1 EXEC('x')", keyword: "EXEC"},
		{name: "system procedure", input: "SELECT 1 FROM T WHERE sp_who = 1", keyword: "SP_"},
		{name: "extended procedure", input: "SELECT xp_cmdshell", keyword: "XP_"},
		{name: "multiword with newline", input: "SELECT 1 CREATE\n  TABLE x (a int)", keyword: "CREATE TABLE"},
		{name: "bulk insert", input: "SELECT 1 BULK   INSERT T FROM 'f'", keyword: "BULK INSERT"},
		{name: "lowercase keyword", input: "select * from t; truncate table t", keyword: "TRUNCATE"},
		{name: "waitfor", input: "SELECT 1 WAITFOR DELAY '00:00:05'", keyword: "WAITFOR"},
		{name: "openrowset", input: "SELECT * FROM OPENROWSET('x','y','z')", keyword: "OPENROWSET"},
		{name: "two selects", input: "SELECT 1; SELECT 2", keyword: ";"},
		{name: "backslash does not escape", input: `SELECT 'a\' ; SELECT 2 --'`, keyword: ";"},
		{name: "unterminated literal", input: "SELECT 'abc", keyword: ""},
		{name: "unterminated comment", input: "SELECT 1 /* x", keyword: ""},
		{name: "unterminated nested comment", input: "SELECT 1 /* /* */ AS a", keyword: ""},
		{name: "stacked drop after nested comment", input: "SELECT 1 AS a /* /* */ ' */ ; DROP TABLE T --'", keyword: "DROP"},
		{name: "drop after nested comment", input: "SELECT 1 AS a /* /* */ ' */ DROP TABLE T /* ' */", keyword: "DROP"},
		{name: "delete after nested comment", input: "SELECT name FROM T /* /* */ ' */ DELETE FROM T /* ' */", keyword: "DELETE"},
		{name: "empty", input: "  ", keyword: ""},
		{name: "comment only", input: "-- SELECT 1", keyword: ""},
		{name: "injection in literal", input: "SELECT * FROM T WHERE A = ''' OR ''1''=''1'", keyword: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := Verify(tt.input)
			assert.False(t, verdict.ReadOnly)
			assert.NotEmpty(t, verdict.Reason)
			if tt.keyword != "" {
				assert.Equal(t, tt.keyword, verdict.Keyword)
			}
		})
	}
}

func TestVerify_ReasonNamesKeyword(t *testing.T) {
	verdict := Verify("SELECT * FROM T; DROP TABLE T")

	assert.Contains(t, verdict.Reason, "'DROP'")
	assert.Contains(t, verdict.Reason, "read-only")
	assert.False(t, verdict.Injection, "deny-list rejections are not injection matches")
}
