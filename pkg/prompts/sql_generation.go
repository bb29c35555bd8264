// Package prompts builds the system and user prompts sent to the language
// model for SQL generation and result analysis.
package prompts

import (
	"strings"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

// MaxHistoryTurns is how many prior conversation turns accompany a request.
const MaxHistoryTurns = 5

// example is one worked question/answer pair.
type example struct {
	question string
	answer   string
}

var sqlExamples = []example{
	{"Show me all brands", "SELECT * FROM [EDC_BRAND];"},
	{"Show me top 10 products", "SELECT TOP 10 * FROM [EDC_PRODUCT];"},
	{"How many products are there?", "SELECT COUNT(*) as count FROM [EDC_PRODUCT];"},
	{"What is the average selling price for each brand?",
		"SELECT b.BR_CODE, b.BR_DESC, AVG(p.PR_SELLING_PRICE) AS Average_Selling_Price FROM [EDC_BRAND] b JOIN [EDC_PRODUCT] p ON b.BR_CODE = p.PR_PT_CODE GROUP BY b.BR_CODE, b.BR_DESC;"},
	{"List products with their categories",
		"SELECT p.PR_CODE, p.PR_DESC, c.CT_DESC FROM [EDC_PRODUCT] p LEFT JOIN [EDC_CATEGORY] c ON p.PR_PT_CODE = c.CT_CODE;"},
	{"Find all brands with SAS",
		"SELECT * FROM [EDC_BRAND] WHERE LOWER(BR_DESC) = LOWER('SAS') OR BR_DESC LIKE '%SAS%';"},
	{"What was the oldest and newest product?",
		"SELECT * FROM [EDC_PRODUCT] WHERE [PR_CREATED_DATE] = (SELECT MIN([PR_CREATED_DATE]) FROM [EDC_PRODUCT]) OR [PR_CREATED_DATE] = (SELECT MAX([PR_CREATED_DATE]) FROM [EDC_PRODUCT]);"},
	{"show table", sqlutil.TagClarification + " Which table would you like to see? Available tables: EDC_BRAND, EDC_PRODUCT, EDC_CATEGORY, etc."},
	{"show columns", sqlutil.TagClarification + " Which table's columns would you like to see? Please specify the table name."},
	{"show all", sqlutil.TagClarification + " What would you like to see? Please specify: all tables, all products, all brands, etc."},
	{"calculate average age in Excel", sqlutil.TagLogicalAnswer + " Use =AVERAGE(...) over the age column. Would you like me to calculate it from your database instead?"},
	{"Delete all brands", sqlutil.TagReadOnly},
	{"Update product prices", sqlutil.TagReadOnly},
}

// BuildSQLSystemPrompt creates the system prompt for SQL generation.
//
// schemaText must already be serialized in format. compact selects the
// stricter SQL-only prompt used for small local models, which tend to answer
// the question in prose unless told not to.
func BuildSQLSystemPrompt(schemaText string, format schema.Format, compact bool) string {
	var prompt strings.Builder

	if compact {
		prompt.WriteString("You are a SQL query generator. Your only job is to convert the user's question into one SQL Server SELECT query.\n\n")
		prompt.WriteString("Do NOT answer the question directly and do NOT explain. Output ONLY the SQL statement.\n\n")
	} else {
		prompt.WriteString("You are an intelligent assistant for database questions. Your primary job is to convert natural language questions into SQL Server (T-SQL) queries. ")
		prompt.WriteString("You may also answer logical or formula questions, and ask for clarification when a request is genuinely ambiguous.\n\n")
	}

	writeSchemaSection(&prompt, schemaText, format)

	if compact {
		writeCompactRules(&prompt)
	} else {
		writeRules(&prompt)
	}

	prompt.WriteString("## Examples\n\n")
	for _, ex := range sqlExamples {
		if compact && (strings.HasPrefix(ex.answer, sqlutil.TagClarification) || strings.HasPrefix(ex.answer, sqlutil.TagLogicalAnswer)) {
			continue
		}
		prompt.WriteString("- \"" + ex.question + "\" -> " + ex.answer + "\n")
	}
	prompt.WriteString("\n")

	writeExtremesSection(&prompt)

	if compact {
		prompt.WriteString("REMEMBER: output only the SQL query. No explanations, no markdown, no text. Start with SELECT.\n")
	}

	return prompt.String()
}

func writeSchemaSection(prompt *strings.Builder, schemaText string, format schema.Format) {
	switch format {
	case schema.FormatNameJSON:
		prompt.WriteString("## Database Schema (JSON)\n\n")
		prompt.WriteString("Each table maps to its columns. Every column has a \"description\" explaining what it holds; ")
		prompt.WriteString("use the descriptions to match the user's words to the right column.\n\n")
	default:
		prompt.WriteString("## Database Schema (TOON)\n\n")
		prompt.WriteString("The schema is metadata in TOON notation, not SQL syntax:\n\n")
		prompt.WriteString("  TABLE[column_count]{name, type, nullable, max_length, description}:\n")
		prompt.WriteString("    column_name, data_type, nullable, max_length, description\n\n")
		prompt.WriteString("Never use TOON brackets or braces in a query. Write normal SQL such as SELECT * FROM [table_name] WHERE column_name = 'value'. ")
		prompt.WriteString("Use the description field to match the user's words to the right column.\n\n")
	}
	prompt.WriteString(schemaText)
	prompt.WriteString("\n\n")
}

func writeRules(prompt *strings.Builder) {
	prompt.WriteString("## Instructions\n\n")

	prompt.WriteString("1. **Question types**:\n")
	prompt.WriteString("   - Database questions: return ONLY the SQL query, with no surrounding text\n")
	prompt.WriteString("   - Logical, comparison or Excel formula questions: return \"" + sqlutil.TagLogicalAnswer + " <your explanation>\"\n")
	prompt.WriteString("   - Requests that need more information: return \"" + sqlutil.TagClarification + " <your question>\"\n")
	prompt.WriteString("   - Requests to delete, update, insert or otherwise modify data: return \"" + sqlutil.TagReadOnly + "\"\n")
	prompt.WriteString("   - Anything that cannot become a meaningful query: return \"" + sqlutil.TagInvalid + "\"\n\n")

	prompt.WriteString("2. **Typos and approximate names**: users rarely know exact table or column names.\n")
	prompt.WriteString("   - Match the user's intent against column descriptions, not only column names\n")
	prompt.WriteString("   - \"selling price\" means a column described as \"Selling price\", such as PR_SELLING_PRICE\n")
	prompt.WriteString("   - Pick the closest match from the schema when a name is slightly wrong\n\n")

	prompt.WriteString("3. **Clarify only when truly ambiguous**:\n")
	prompt.WriteString("   - If the question is clear enough to answer with SQL, generate the SQL\n")
	prompt.WriteString("   - \"what is the total stock on hold\" is clear: sum the stock on hand\n")
	prompt.WriteString("   - \"what is the total of each stock on hold\" is clear: GROUP BY product\n")
	prompt.WriteString("   - For an Excel calculation, explain the formula and offer to run it on the database instead\n\n")

	prompt.WriteString("4. **SQL rules**:\n")
	prompt.WriteString("   - Use SQL Server (T-SQL) syntax and square brackets [] around table and column names\n")
	prompt.WriteString("   - Use EXACT table and column names from the schema\n")
	prompt.WriteString("   - Use GROUP BY for aggregations and explicit JOIN syntax across tables\n")
	prompt.WriteString("   - Do NOT add TOP unless the user asks for a limited number of rows; return all rows by default\n")
	prompt.WriteString("   - Use TOP, never LIMIT\n\n")

	prompt.WriteString("5. **Case-insensitive text matching**:\n")
	prompt.WriteString("   - LOWER(column_name) = LOWER('search_term')\n")
	prompt.WriteString("   - or column_name LIKE '%search%' COLLATE SQL_Latin1_General_CP1_CI_AS\n\n")

	prompt.WriteString("6. **READ-ONLY ACCESS**:\n")
	prompt.WriteString("   - Generate ONLY SELECT queries (a WITH clause followed by SELECT is fine)\n")
	prompt.WriteString("   - NEVER generate DELETE, TRUNCATE, DROP, INSERT, UPDATE, ALTER, CREATE, EXEC or MERGE\n")
	prompt.WriteString("   - If asked to change data, return \"" + sqlutil.TagReadOnly + "\"\n\n")
}

func writeCompactRules(prompt *strings.Builder) {
	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("1. Output ONLY SQL code. No text, no explanations, no answers to the question.\n")
	prompt.WriteString("2. Start the response with SELECT.\n")
	prompt.WriteString("3. Use SQL Server (T-SQL) syntax, TOP instead of LIMIT, and [] around names.\n")
	prompt.WriteString("4. Use EXACT column names from the schema.\n")
	prompt.WriteString("5. Use GROUP BY for aggregations and proper JOIN syntax.\n")
	prompt.WriteString("6. Do not add TOP unless the user asks for a number of rows.\n")
	prompt.WriteString("7. Use LOWER() on both sides for text comparisons.\n")
	prompt.WriteString("8. READ-ONLY: only SELECT. If asked to change data, output " + sqlutil.TagReadOnly + ".\n\n")
}

func writeExtremesSection(prompt *strings.Builder) {
	prompt.WriteString("IMPORTANT: When the user asks for BOTH extremes (\"oldest and newest\", \"highest and lowest\", \"first and last\"), return BOTH records:\n")
	prompt.WriteString("- Use UNION ALL or OR conditions so several records come back\n")
	prompt.WriteString("- For \"oldest and newest\" return the rows with the MIN date and the MAX date\n")
	prompt.WriteString("- For \"highest and lowest\" return the rows with the MAX value and the MIN value\n")
	prompt.WriteString("- Always return ALL requested extremes, never just one\n\n")
}

// TrimHistory returns the last n turns in chronological order.
// Older turns are dropped, not summarized.
func TrimHistory(history []llm.Message, n int) []llm.Message {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
