//go:build mssql || all_adapters

package mssql

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	sqlutil "github.com/ekaya-inc/ekaya-sqlchat/pkg/sql"
)

// integrationConfig reads connection settings from the environment and
// skips the test when they are absent.
func integrationConfig(t *testing.T) *Config {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	host := os.Getenv("MSSQL_HOST")
	user := os.Getenv("MSSQL_USER")
	password := os.Getenv("MSSQL_PASSWORD")
	database := os.Getenv("MSSQL_DATABASE")

	if host == "" || user == "" || password == "" || database == "" {
		t.Skip("skipping integration test: MSSQL_HOST, MSSQL_USER, MSSQL_PASSWORD, or MSSQL_DATABASE not set")
	}

	port := DefaultPort()
	if p := os.Getenv("MSSQL_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			t.Fatalf("invalid MSSQL_PORT: %v", err)
		}
	}

	return &Config{
		Host:                   host,
		Port:                   port,
		Database:               database,
		AuthMethod:             AuthMethodSQL,
		Username:               user,
		Password:               password,
		TrustServerCertificate: true,
	}
}

func TestSchemaDiscoverer_DiscoverTables(t *testing.T) {
	cfg := integrationConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err, "failed to open store")
	defer store.Close()

	require.NoError(t, store.TestConnection(ctx))

	tables, err := store.DiscoverTables(ctx)
	require.NoError(t, err)

	for _, table := range tables {
		assert.NotEqual(t, "sys", table.SchemaName)
		columns, err := store.DiscoverColumns(ctx, table.SchemaName, table.TableName)
		require.NoError(t, err)
		for i, col := range columns {
			assert.Equal(t, i+1, col.OrdinalPosition)
		}
	}
}

func TestQueryExecutor_Run(t *testing.T) {
	cfg := integrationConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	executor, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer executor.Close()

	t.Run("limits and counts", func(t *testing.T) {
		sql := "SELECT name FROM sys.objects"
		result := executor.Run(ctx, sql, 5)

		require.False(t, result.Failed(), result.Error)
		assert.Contains(t, result.SQL, "TOP (5)")
		assert.LessOrEqual(t, result.RowCount, 5)
		if result.RowCount == 5 {
			require.NotNil(t, result.TotalCount)
			assert.Equal(t, *result.TotalCount > 5, result.HasMore)
		}
	})

	t.Run("column order", func(t *testing.T) {
		result := executor.Run(ctx, "SELECT 1 AS b, 2 AS a, CAST(1.50 AS DECIMAL(5,2)) AS price", 0)

		require.False(t, result.Failed(), result.Error)
		require.Len(t, result.Columns, 3)
		assert.Equal(t, "b", result.Columns[0].Name)
		assert.Equal(t, "a", result.Columns[1].Name)
		assert.Equal(t, "1.5", result.Rows[0]["price"].(interface{ String() string }).String())
	})

	t.Run("normalized equality ignores case sensitive collation", func(t *testing.T) {
		generated := "SELECT NAME FROM (SELECT v.NAME COLLATE Latin1_General_CS_AS AS NAME " +
			"FROM (VALUES ('sas'), ('SAS'), ('Sas'), ('x')) AS v(NAME)) AS T WHERE NAME = 'Sas'"

		exact := executor.Run(ctx, generated, 0)
		require.False(t, exact.Failed(), exact.Error)
		require.Equal(t, 1, exact.RowCount, "column must compare case sensitively")

		normalized, err := sqlutil.Normalize(generated, "show the sas rows")
		require.NoError(t, err)
		result := executor.Run(ctx, normalized, 0)

		require.False(t, result.Failed(), result.Error)
		assert.Equal(t, 3, result.RowCount)
	})

	t.Run("error is reported not returned", func(t *testing.T) {
		result := executor.Run(ctx, "SELECT * FROM no_such_table_xyz", 10)

		assert.True(t, result.Failed())
		assert.Empty(t, result.Rows)
	})
}
