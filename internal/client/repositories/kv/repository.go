// Package kv provides the byte-oriented key/value stores backing the local
// journal cache. Keys are opaque strings; callers build them from a UserScope.
package kv

import (
	"context"
)

// Repository is a flat key/value store.
// Get returns (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}

// Event reports that a key was changed by someone else.
type Event struct {
	Key string
}

// Watcher is implemented by stores that can observe writes made by other
// processes sharing the same storage.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Event, error)
}
