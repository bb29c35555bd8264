package datasource

import "context"

// ConnectionTester tests database connectivity.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error
}

// SchemaDiscoverer lists the base tables and columns the assistant may query.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user base tables (excludes system schemas),
	// ordered by schema then name.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)
}

// DefaultRowLimit is the row cap applied when the caller does not ask for
// every row.
const DefaultRowLimit = 1000

// QueryExecutor runs verified read-only statements against the business data store.
type QueryExecutor interface {
	// Run executes sqlQuery. When rowLimit > 0 and the statement carries no
	// limiter of its own, a TOP (rowLimit) is injected. Failures are reported
	// in ExecutionResult.Error; Run never returns a nil result.
	Run(ctx context.Context, sqlQuery string, rowLimit int) *ExecutionResult
}

// BusinessStore is one open connection pool to the business data store,
// serving connectivity checks, schema discovery and query execution.
// The caller owns it and must Close it.
type BusinessStore interface {
	ConnectionTester
	SchemaDiscoverer
	QueryExecutor

	// Close releases the connection pool.
	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "VARCHAR", "NUMERIC", "TIMESTAMP")
}

// ExecutionResult holds the outcome of running one statement.
// Row values keep their native Go types (time.Time, decimal.Decimal, int64,
// float64, string, bool); conversion for transport happens at the edge.
type ExecutionResult struct {
	SQL        string           `json:"sql"`
	Columns    []ColumnInfo     `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	RowCount   int              `json:"row_count"`
	TotalCount *int             `json:"total_count,omitempty"`
	HasMore    bool             `json:"has_more"`
	Error      string           `json:"error,omitempty"`
}

// Failed reports whether the statement did not run to completion.
func (r *ExecutionResult) Failed() bool {
	return r.Error != ""
}
