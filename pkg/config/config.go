package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/mssql"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for sqlchat.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr        string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port            string        `yaml:"port" env:"PORT" env-default:"5000"`
	Env             string        `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	Version         string        `yaml:"-"` // Set at load time, not from config

	// Login for the chat API. Empty credentials disable authentication.
	Auth AuthConfig `yaml:"auth"`

	// Metadata store (PostgreSQL) for chat sessions
	Database DatabaseConfig `yaml:"database"`

	// Business data store (SQL Server) the assistant queries
	Datasource DatasourceConfig `yaml:"datasource"`

	LLM   LLMConfig   `yaml:"llm"`
	Query QueryConfig `yaml:"query"`
}

// AuthConfig holds the single configured login.
type AuthConfig struct {
	Email    string        `yaml:"-" env:"AUTH_EMAIL"`    // Secret - not in YAML
	Password string        `yaml:"-" env:"AUTH_PASSWORD"` // Secret - not in YAML
	TokenTTL time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"24h"`
}

// Enabled reports whether a login is configured.
func (c *AuthConfig) Enabled() bool {
	return c.Email != "" && c.Password != ""
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"sqlchat"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"sqlchat"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatasourceConfig holds the SQL Server connection.
type DatasourceConfig struct {
	Host                   string `yaml:"host" env:"MSSQL_HOST" env-default:"localhost"`
	Port                   int    `yaml:"port" env:"MSSQL_PORT" env-default:"1433"`
	Database               string `yaml:"database" env:"MSSQL_DATABASE"`
	User                   string `yaml:"user" env:"MSSQL_USER"`
	Password               string `yaml:"-" env:"MSSQL_PASSWORD"` // Secret - not in YAML
	Encrypt                bool   `yaml:"encrypt" env:"MSSQL_ENCRYPT" env-default:"true"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate" env:"MSSQL_TRUST_SERVER_CERTIFICATE" env-default:"false"`
	ConnectionTimeout      int    `yaml:"connection_timeout" env:"MSSQL_CONNECTION_TIMEOUT" env-default:"30"`

	// Azure AD service principal, used instead of User/Password when set.
	TenantID     string `yaml:"tenant_id" env:"MSSQL_TENANT_ID"`
	ClientID     string `yaml:"client_id" env:"MSSQL_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"MSSQL_CLIENT_SECRET"` // Secret - not in YAML
}

// AdapterConfig returns the generic option map the datasource registry
// hands to the SQL Server adapter factories.
func (c *DatasourceConfig) AdapterConfig() map[string]any {
	cfg := map[string]any{
		"host":                     ResolveHostForDocker(c.Host),
		"port":                     c.Port,
		"database":                 c.Database,
		"encrypt":                  c.Encrypt,
		"trust_server_certificate": c.TrustServerCertificate,
		"connection_timeout":       c.ConnectionTimeout,
	}
	if c.ClientID != "" {
		cfg["auth_method"] = mssql.AuthMethodServicePrincipal
		cfg["tenant_id"] = c.TenantID
		cfg["client_id"] = c.ClientID
		cfg["client_secret"] = c.ClientSecret
		return cfg
	}
	cfg["auth_method"] = mssql.AuthMethodSQL
	cfg["username"] = c.User
	cfg["password"] = c.Password
	return cfg
}

// LLMConfig holds model provider credentials and selection policy.
type LLMConfig struct {
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`    // Secret - not in YAML
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	OpenAIBaseURL   string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OllamaBaseURL   string `yaml:"ollama_base_url" env:"OLLAMA_BASE_URL" env-default:"http://localhost:11434/v1"`

	DefaultModel  string `yaml:"default_model" env:"LLM_DEFAULT_MODEL" env-default:"gpt-4o-mini"`
	FallbackModel string `yaml:"fallback_model" env:"LLM_FALLBACK_MODEL"`
	// AllowFallback substitutes FallbackModel for unknown model IDs instead
	// of rejecting the request.
	AllowFallback bool `yaml:"allow_fallback" env:"LLM_ALLOW_FALLBACK" env-default:"false"`

	RequestTimeout  time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"30s"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout" env:"LLM_ANALYSIS_TIMEOUT" env-default:"60s"`
}

// RegistryConfig converts the section for llm.NewRegistry.
func (c *LLMConfig) RegistryConfig() llm.RegistryConfig {
	return llm.RegistryConfig{
		OpenAIAPIKey:    c.OpenAIAPIKey,
		OpenAIEndpoint:  c.OpenAIBaseURL,
		AnthropicAPIKey: c.AnthropicAPIKey,
		OllamaEndpoint:  ResolveURLForDocker(c.OllamaBaseURL),
		DefaultModel:    c.DefaultModel,
		FallbackModel:   c.FallbackModel,
		AllowFallback:   c.AllowFallback,
	}
}

// QueryConfig holds generation and execution limits.
type QueryConfig struct {
	DefaultRowLimit   int    `yaml:"default_row_limit" env:"QUERY_DEFAULT_ROW_LIMIT" env-default:"1000"`
	SchemaFormat      string `yaml:"schema_format" env:"SCHEMA_FORMAT" env-default:"toon"`
	LocalSchemaBudget int    `yaml:"local_schema_budget" env:"LOCAL_SCHEMA_BUDGET" env-default:"4000"`
}

// Format returns the parsed schema format. Load has already validated it.
func (c *QueryConfig) Format() schema.Format {
	f, err := schema.ParseFormat(c.SchemaFormat)
	if err != nil {
		return schema.FormatNameTOON
	}
	return f
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultPath, version)
}

// LoadFrom reads configuration from path with environment variable
// overrides. A missing file is not an error; the environment and defaults
// are used alone.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(statErr, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c *Config) Validate() error {
	if _, err := schema.ParseFormat(c.Query.SchemaFormat); err != nil {
		return err
	}
	if (c.Auth.Email == "") != (c.Auth.Password == "") {
		return fmt.Errorf("AUTH_EMAIL and AUTH_PASSWORD must be set together")
	}
	if c.Query.DefaultRowLimit < 0 {
		return fmt.Errorf("default_row_limit must not be negative: %d", c.Query.DefaultRowLimit)
	}
	if c.Query.LocalSchemaBudget <= 0 {
		return fmt.Errorf("local_schema_budget must be positive: %d", c.Query.LocalSchemaBudget)
	}
	if c.LLM.AllowFallback && strings.TrimSpace(c.LLM.FallbackModel) != "" {
		if _, ok := llm.LookupModel(c.LLM.FallbackModel); !ok {
			return fmt.Errorf("fallback model %q is not a supported model", c.LLM.FallbackModel)
		}
	}
	return nil
}

// ListenAddr is the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// Dump writes the effective non-secret configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
