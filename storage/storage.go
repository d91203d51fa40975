// Package storage - Durable key/value backends for persisted benchmark history.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get for keys that hold no value.
var ErrNotFound = errors.New("key not found")

// Storage is a minimal key/value store. Values are opaque byte slices.
type Storage interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the store.
	Close() error
}

// Driver names a Storage implementation.
type Driver string

const (
	DriverDir    Driver = "dir"
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// ErrUnknownDriver is returned by Open for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Open creates the store selected by driver.
//
// Arguments:
//   - driver: The implementation to use.
//   - path: A directory for DriverDir, a database file for DriverSQLite, ignored otherwise.
//
// Returns:
//   - Storage: The opened store.
//   - error: ErrUnknownDriver or an open failure.
func Open(driver Driver, path string) (Storage, error) {
	switch driver {
	case DriverDir:
		return NewDir(path)
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", driver)
	}
}
