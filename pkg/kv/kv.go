// Package kv abstracts the engine's blob persistence: a tiny key-value
// surface holding the history ledger and the saved-signal set as JSON
// arrays. The engine never assumes a storage medium; implementations
// exist for the local filesystem and for Redis.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no value exists for the key.
// Callers treat it as empty state, never as a failure.
var ErrNotFound = errors.New("kv: key not found")

// Store persists opaque blobs by key. Save must be atomic with respect
// to concurrent Load: a reader sees the previous value or the new one,
// never a torn write.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}
