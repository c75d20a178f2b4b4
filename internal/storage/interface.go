package storage

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by Load when the backing store does not exist yet
var ErrNotInitialized = errors.New("storage not initialized, run 'habitsync init' first")

// UpdateFunc receives the current value of a key (ok is false when the key is
// absent) and returns its replacement. Returning an empty string removes the
// key; returning an error aborts the update and leaves the key untouched.
type UpdateFunc func(current string, ok bool) (string, error)

// KV is the local persistence contract of the sync engine: an async string
// key-value store. Values are opaque; callers serialize their own documents.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// Update performs an atomic read-modify-write of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Provider is a KV with a lifecycle, as opened by the CLI
type Provider interface {
	KV

	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error

	// Utils
	GetConfigPath() string
}
