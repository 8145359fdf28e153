// Package storage provides string key/value persistence for inspector state
// that must outlive the process, such as the active schema branch.
package storage

import (
	"errors"
	"fmt"
)

// Store persists string values by key.
// Implementations must be safe for concurrent use.
type Store interface {
	// IsInitialized reports whether the store is ready for reads and writes.
	IsInitialized() bool

	// GetItem retrieves a value.
	// Returns ErrNotFound if the key has no value.
	GetItem(key string) (string, error)

	// SetItem stores a value, overwriting any existing one.
	SetItem(key, value string) error

	// RemoveItem deletes a value.
	// Returns nil if the key has no value.
	RemoveItem(key string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates a key has no stored value.
	ErrNotFound = errors.New("storage item not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("storage closed")

	// ErrUnknownDriver indicates Open was given an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Open creates a store for the named driver. path is ignored for the memory
// driver and defaults to an in-memory database for sqlite.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		if path == "" {
			path = ":memory:"
		}
		return NewSQLiteStore(path)
	case DriverBolt:
		if path == "" {
			return nil, fmt.Errorf("%w: bolt requires a file path", ErrUnknownDriver)
		}
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
