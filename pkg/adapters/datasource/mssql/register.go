package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

// Type is the registry key for the SQL Server adapter.
const Type = "mssql"

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        Type,
			DisplayName: "Microsoft SQL Server",
			Description: "SQL Server 2019+ and Azure SQL Database, read-only access",
		},
		Open: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.BusinessStore, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return Open(ctx, cfg, logger)
		},
	})
}
