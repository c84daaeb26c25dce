// Package kvstore provides the durable per-session key/value storage and its driver registry.
package kvstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/jrsteele09/myoutlet-admin/internal/errors"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("kvstore: not found")
	ErrClosed   = errors.New("kvstore: closed")
)

// Store is a namespaced string key/value store. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(namespace, key string) (string, error)

	// PutMany writes all values atomically: readers see either none or all of them.
	PutMany(namespace string, values map[string]string) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(namespace string, keys ...string) error

	// DeleteNamespace removes every key of a namespace.
	DeleteNamespace(namespace string) error

	// Namespaces lists the stored namespaces. It may include namespaces whose keys were all
	// deleted one by one.
	Namespaces() ([]string, error)

	Close() error
}

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, bolt, sqlite
	Driver string

	// Path is the database file used by file backed drivers.
	Path string
}

// DriverFactory is a function that creates a store instance.
type DriverFactory func(cfg DriverConfig) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// Open creates a store instance based on the configuration.
func Open(cfg DriverConfig) (Store, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("[kvstore Open] %w: %s (available: %v)", apperrors.ErrUnknownDriver, cfg.Driver, AvailableDrivers())
	}

	return factory(cfg)
}

// AvailableDrivers returns the sorted list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
