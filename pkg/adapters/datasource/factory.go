package datasource

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StoreFactory opens business stores through the adapter registry.
type StoreFactory interface {
	// Open connects to the store of the given adapter type.
	Open(ctx context.Context, dsType string, config map[string]any) (BusinessStore, error)

	// Types returns every registered adapter.
	Types() []AdapterInfo
}

type storeFactory struct {
	logger *zap.Logger
}

// NewStoreFactory returns a factory backed by the global registry.
// If logger is nil, a no-op logger is used.
func NewStoreFactory(logger *zap.Logger) StoreFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &storeFactory{logger: logger.Named("datasource")}
}

func (f *storeFactory) Open(ctx context.Context, dsType string, config map[string]any) (BusinessStore, error) {
	reg, ok := Lookup(dsType)
	if !ok || reg.Open == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s", dsType)
	}

	start := time.Now()
	store, err := reg.Open(ctx, config, f.logger)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Business store connected",
		zap.String("type", dsType),
		zap.Any("host", config["host"]),
		zap.Any("database", config["database"]),
		zap.Duration("elapsed", time.Since(start)))
	return store, nil
}

func (f *storeFactory) Types() []AdapterInfo {
	return Types()
}

var _ StoreFactory = (*storeFactory)(nil)
