package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Executor)
)

// Register adds an executor factory to the registry. Called by executor
// implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Executor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an executor factory by name.
func Get(name string) (func(*slog.Logger) Executor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates an executor for the config's type. A nil logger is passed
// through to the factory as is.
func New(cfg Config, logger *slog.Logger) (Executor, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("executor type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownExecutorError{Type: cfg.Type, Available: List()}
	}
	return factory(logger), nil
}

// List returns all registered executor names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks whether an executor type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownExecutorError is returned when an unknown executor type is
// requested.
type UnknownExecutorError struct {
	Type      string
	Available []string
}

func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("unknown executor type %q, available: %v", e.Type, e.Available)
}
