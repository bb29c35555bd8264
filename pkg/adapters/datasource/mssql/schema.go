package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

// SchemaDiscoverer reads table and column metadata from INFORMATION_SCHEMA.
type SchemaDiscoverer struct {
	db     *sql.DB
	logger *zap.Logger
}

func newSchemaDiscoverer(db *sql.DB, logger *zap.Logger) *SchemaDiscoverer {
	return &SchemaDiscoverer{
		db:     db,
		logger: logger.Named("mssql-schema"),
	}
}

// DiscoverTables returns all user base tables (excludes system schemas).
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	query := `
	SET NOCOUNT ON;
	SELECT TABLE_SCHEMA, TABLE_NAME
	FROM INFORMATION_SCHEMA.TABLES
	WHERE TABLE_TYPE = 'BASE TABLE'
	  AND TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
	ORDER BY TABLE_SCHEMA, TABLE_NAME
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var table datasource.TableMetadata
		if err := rows.Scan(&table.SchemaName, &table.TableName); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	s.logger.Debug("Discovered tables", zap.Int("count", len(tables)))
	return tables, nil
}

// DiscoverColumns returns columns for a specific table in ordinal order.
// The MS_Description extended property is returned when one is set.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    c.COLUMN_NAME,
	    c.DATA_TYPE,
	    CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS is_nullable,
	    c.CHARACTER_MAXIMUM_LENGTH,
	    c.ORDINAL_POSITION,
	    CAST(ep.value AS NVARCHAR(4000)) AS description
	FROM INFORMATION_SCHEMA.COLUMNS c
	LEFT JOIN sys.extended_properties ep
	    ON ep.major_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + N'.' + QUOTENAME(c.TABLE_NAME))
	   AND ep.minor_id = COLUMNPROPERTY(ep.major_id, c.COLUMN_NAME, 'ColumnId')
	   AND ep.class = 1
	   AND ep.name = 'MS_Description'
	WHERE c.TABLE_SCHEMA = @schema AND c.TABLE_NAME = @table
	ORDER BY c.ORDINAL_POSITION
	`

	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		var isNullable int
		var maxLength sql.NullInt64
		var description sql.NullString

		if err := rows.Scan(
			&col.ColumnName,
			&col.DataType,
			&isNullable,
			&maxLength,
			&col.OrdinalPosition,
			&description,
		); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		col.IsNullable = isNullable == 1
		// -1 marks (MAX) types; report no fixed length for them.
		if maxLength.Valid && maxLength.Int64 > 0 {
			n := int(maxLength.Int64)
			col.MaxLength = &n
		}
		col.Description = strings.TrimSpace(description.String)
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// Ensure SchemaDiscoverer implements datasource.SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
