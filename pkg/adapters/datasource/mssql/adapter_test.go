package mssql

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionString(t *testing.T) {
	t.Run("sql authentication escapes credentials", func(t *testing.T) {
		cfg := &Config{
			Host:              "sql.example.com",
			Port:              1433,
			Database:          "Sales",
			AuthMethod:        AuthMethodSQL,
			Username:          "reader",
			Password:          "p@ss:word/1",
			Encrypt:           true,
			ConnectionTimeout: 30,
		}

		driver, dsn, err := connectionString(cfg)
		require.NoError(t, err)
		assert.Equal(t, "sqlserver", driver)

		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "sql.example.com:1433", u.Host)
		assert.Equal(t, "reader", u.User.Username())
		password, _ := u.User.Password()
		assert.Equal(t, "p@ss:word/1", password)

		q := u.Query()
		assert.Equal(t, "Sales", q.Get("database"))
		assert.Equal(t, "true", q.Get("encrypt"))
		assert.Equal(t, "30", q.Get("connection timeout"))
		assert.Equal(t, appName, q.Get("app name"))
		assert.Empty(t, q.Get("TrustServerCertificate"))
	})

	t.Run("service principal uses azuresql", func(t *testing.T) {
		cfg := &Config{
			Host:                   "sql.example.com",
			Port:                   1433,
			Database:               "Sales",
			AuthMethod:             AuthMethodServicePrincipal,
			TenantID:               "tenant",
			ClientID:               "client",
			ClientSecret:           "secret",
			TrustServerCertificate: true,
		}

		driver, dsn, err := connectionString(cfg)
		require.NoError(t, err)
		assert.Equal(t, "azuresql", driver)

		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Nil(t, u.User)

		q := u.Query()
		assert.Equal(t, "ActiveDirectoryServicePrincipal", q.Get("fedauth"))
		assert.Equal(t, "client@tenant", q.Get("user id"))
		assert.Equal(t, "secret", q.Get("password"))
		assert.Equal(t, "false", q.Get("encrypt"))
		assert.Equal(t, "true", q.Get("TrustServerCertificate"))
	})

	t.Run("unknown auth method", func(t *testing.T) {
		_, _, err := connectionString(&Config{AuthMethod: "kerberos"})
		assert.ErrorContains(t, err, "kerberos")
	})
}
