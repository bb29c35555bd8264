package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

// appName identifies the assistant in sys.dm_exec_sessions.
const appName = "ekaya-sqlchat"

// Store is one SQL Server connection pool shared by schema discovery and
// query execution.
type Store struct {
	*SchemaDiscoverer
	*QueryExecutor

	config *Config
	db     *sql.DB
}

// Open validates cfg, opens a pool and pings it. The caller owns the
// returned Store and must Close it.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driver, dsn, err := connectionString(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.AuthMethod, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	return &Store{
		SchemaDiscoverer: newSchemaDiscoverer(db, logger),
		QueryExecutor:    newQueryExecutor(db, logger),
		config:           cfg,
		db:               db,
	}, nil
}

// connectionQuery holds the DSN parameters shared by every auth method.
func connectionQuery(cfg *Config) url.Values {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("encrypt", strconv.FormatBool(cfg.Encrypt))
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}
	query.Add("app name", appName)
	return query
}

// connectionString returns the driver name and DSN for the configured
// authentication method.
func connectionString(cfg *Config) (string, string, error) {
	query := connectionQuery(cfg)

	switch cfg.AuthMethod {
	case AuthMethodSQL:
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			RawQuery: query.Encode(),
		}
		return "sqlserver", u.String(), nil
	case AuthMethodServicePrincipal:
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		u := &url.URL{
			Scheme:   "sqlserver",
			Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			RawQuery: query.Encode(),
		}
		return "azuresql", u.String(), nil
	default:
		return "", "", fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// TestConnection pings the pool and runs SELECT 1.
func (s *Store) TestConnection(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Database returns the configured database name.
func (s *Store) Database() string {
	return s.config.Database
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ datasource.BusinessStore = (*Store)(nil)
