package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

// QueryExecutor runs verified statements with a row cap and a best-effort
// total count.
type QueryExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

func newQueryExecutor(db *sql.DB, logger *zap.Logger) *QueryExecutor {
	return &QueryExecutor{
		db:     db,
		logger: logger.Named("mssql-executor"),
	}
}

// Run executes a verified read-only statement.
//
// When the result fills rowLimit, a second best-effort COUNT(*) query
// supplies the total row count. Its failure only omits TotalCount; the
// primary result is returned either way.
func (e *QueryExecutor) Run(ctx context.Context, sqlQuery string, rowLimit int) *datasource.ExecutionResult {
	statement := sqlutil.InjectTop(sqlQuery, rowLimit)
	result := &datasource.ExecutionResult{SQL: statement}

	start := time.Now()
	columns, rows, err := e.query(ctx, statement)
	if err != nil {
		e.logger.Error("Query execution failed",
			zap.String("sql", logging.SanitizeQuery(statement)),
			zap.Error(err))
		result.Error = err.Error()
		return result
	}

	result.Columns = columns
	result.Rows = rows
	result.RowCount = len(rows)

	switch {
	case rowLimit <= 0 || len(rows) < rowLimit:
		total := len(rows)
		result.TotalCount = &total
	case sqlutil.HasLimiter(sqlQuery):
		// The statement carries its own TOP; its rows are the whole answer.
	default:
		result.HasMore = true
		if total, ok := e.totalCount(ctx, sqlQuery); ok {
			result.TotalCount = &total
			result.HasMore = total > len(rows)
		}
	}

	e.logger.Info("Query executed",
		zap.Int("rows", result.RowCount),
		zap.Bool("has_more", result.HasMore),
		zap.Duration("elapsed", time.Since(start)))

	return result
}

// totalCount runs the unlimited statement wrapped in COUNT(*).
func (e *QueryExecutor) totalCount(ctx context.Context, sqlQuery string) (int, bool) {
	countSQL, ok := sqlutil.CountQuery(sqlQuery)
	if !ok {
		return 0, false
	}

	var total int
	if err := e.db.QueryRowContext(ctx, countSQL).Scan(&total); err != nil {
		e.logger.Debug("Total count unavailable",
			zap.String("sql", logging.SanitizeQuery(countSQL)),
			zap.Error(err))
		return 0, false
	}
	return total, true
}

// query runs a statement and collects rows in column order.
func (e *QueryExecutor) query(ctx context.Context, statement string) ([]datasource.ColumnInfo, []map[string]any, error) {
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}

	// Get column types for proper scanning
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get column types: %w", err)
	}

	names := uniqueColumnNames(columnNames)
	columns := make([]datasource.ColumnInfo, len(names))
	for i, name := range names {
		columns[i] = datasource.ColumnInfo{
			Name: name,
			Type: mapSQLServerType(columnTypes[i].DatabaseTypeName()),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(names))
		valuePtrs := make([]any, len(names))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(names))
		for i, name := range names {
			rowMap[name] = convertValue(values[i], columnTypes[i].DatabaseTypeName())
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return columns, resultRows, nil
}

// uniqueColumnNames names unnamed expressions and disambiguates duplicates
// so every value has its own key in the row map.
func uniqueColumnNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
