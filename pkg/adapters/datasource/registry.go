package datasource

import (
	"sort"
	"strings"
	"sync"
)

// ConnectionConfig is the adapter-specific form of a connection string.
type ConnectionConfig interface {
	// Type returns the adapter type, such as "postgres".
	Type() string
	// Validate checks the settings without connecting.
	Validate() error
	// String returns the connection string with the password masked.
	String() string
}

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string   `json:"type" yaml:"type"`                 // "postgres", "mssql"
	DisplayName string   `json:"display_name" yaml:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string   `json:"description" yaml:"description"`
	Schemes     []string `json:"schemes" yaml:"schemes"` // DSN protocols handled, "postgres", "postgresql"
}

// AdapterRegistration contains info + the factory turning DSN fields into a
// ConnectionConfig. The factory receives the projection returned by dsn.DSN.Map.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory func(config map[string]any) (ConnectionConfig, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration) // by type
	schemes    = make(map[string]string)              // scheme -> type
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
	for _, scheme := range reg.Info.Schemes {
		schemes[strings.ToLower(scheme)] = reg.Info.Type
	}
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// GetFactory returns the factory for a DSN scheme.
// Returns nil if no adapter handles the scheme.
func GetFactory(scheme string) func(config map[string]any) (ConnectionConfig, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[schemes[strings.ToLower(scheme)]]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter handles the DSN scheme.
func IsRegistered(scheme string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := schemes[strings.ToLower(scheme)]
	return ok
}
