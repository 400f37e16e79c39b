package discovery

import (
	"sort"
	"sync"
)

var (
	handlersMu sync.RWMutex
	handlers   = make(map[string]ExecuteFunc)
)

// Register makes an execute handler available to manifest units under name.
// It is usually called from an init() function. Registering a name twice
// replaces the earlier handler.
func Register(name string, fn ExecuteFunc) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[name] = fn
}

// Lookup returns the handler registered under name.
func Lookup(name string) (ExecuteFunc, bool) {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	fn, ok := handlers[name]
	return fn, ok
}

// Registered returns the registered handler names in sorted order.
func Registered() []string {
	handlersMu.RLock()
	defer handlersMu.RUnlock()

	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
