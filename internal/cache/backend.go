// Package cache is the get-or-compute cache the ranking and feed reads sit
// behind. Keys are namespaced ("trending:posts:limit:20:tf:24"); every key
// written through a Layer is tracked in a per-namespace key set so pattern
// invalidation can enumerate concrete keys instead of relying on wildcard
// deletes.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned by Backend.Get when the key is absent or expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrEnumerationUnsupported is returned by Backend.Members when the
	// backend cannot list keys; pattern invalidation then relies on TTL expiry
	ErrEnumerationUnsupported = errors.New("cache backend cannot enumerate keys")
)

// Backend is a key-value store with per-key TTL and namespace key tracking
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Track records key as a member of namespace
	Track(ctx context.Context, namespace, key string) error
	// Members lists the tracked keys of namespace
	Members(ctx context.Context, namespace string) ([]string, error)
	// Untrack forgets keys from namespace
	Untrack(ctx context.Context, namespace string, keys ...string) error

	Name() string
}

// Broadcaster fans invalidation messages out to peer instances
type Broadcaster interface {
	Publish(ctx context.Context, message string) error
	Subscribe(ctx context.Context, handler func(message string)) error
}
