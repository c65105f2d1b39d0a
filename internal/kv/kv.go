// Package kv provides the durable key-value backends behind the local store.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// UpdateFunc receives the current value of a key (found is false when the
// key does not exist) and returns the value to store. Returning an error
// aborts the update and leaves the key untouched.
type UpdateFunc func(old []byte, found bool) ([]byte, error)

// Store is a durable, string-keyed value store. Operations on a single key
// are atomic; nothing is transactional across keys.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Update performs an atomic read-modify-write of a single key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Keys lists all keys starting with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend's resources.
	Close() error
}
