package datasource

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered business store adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "mssql"
	DisplayName string `json:"display_name"` // "Microsoft SQL Server"
	Description string `json:"description"`
}

// OpenFunc opens a BusinessStore from adapter-specific connection options.
type OpenFunc func(ctx context.Context, config map[string]any, logger *zap.Logger) (BusinessStore, error)

// Registration pairs an adapter's description with its opener.
type Registration struct {
	Info AdapterInfo
	Open OpenFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each adapter's init() function. A later
// registration for the same type replaces the earlier one.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// Lookup returns the registration for an adapter type.
func Lookup(dsType string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := registry[dsType]
	return reg, ok
}

// Types returns every registered adapter, sorted by type.
func Types() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	infos := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		infos = append(infos, reg.Info)
	}
	slices.SortFunc(infos, func(a, b AdapterInfo) int { return cmp.Compare(a.Type, b.Type) })
	return infos
}
