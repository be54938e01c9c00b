package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is an in-process LRU backend. The LRU's own TTL caps every
// entry; shorter per-key TTLs are checked on read.
type MemoryBackend struct {
	lru *expirable.LRU[string, memEntry]

	mu         sync.Mutex
	namespaces map[string]map[string]struct{}
	enumerate  bool
	fail       error
}

// MemoryOption configures a MemoryBackend
type MemoryOption func(*MemoryBackend)

// WithoutEnumeration makes Members report ErrEnumerationUnsupported
func WithoutEnumeration() MemoryOption {
	return func(m *MemoryBackend) { m.enumerate = false }
}

// NewMemoryBackend creates an LRU backend holding at most size entries for at most maxTTL
func NewMemoryBackend(size int, maxTTL time.Duration, opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		namespaces: make(map[string]map[string]struct{}),
		enumerate:  true,
	}
	m.lru = expirable.NewLRU[string, memEntry](size, nil, maxTTL)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFailure makes Get, Set, Delete and Exists fail with err; nil restores them
func (m *MemoryBackend) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *MemoryBackend) failure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	if err := m.failure(); err != nil {
		return nil, err
	}
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.failure(); err != nil {
		return err
	}
	m.lru.Add(key, newMemEntry(value, ttl))
	return nil
}

func newMemEntry(value []byte, ttl time.Duration) memEntry {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	return e
}

// SetTracked stores and tracks key under the namespace lock, so Members
// never prunes it in between
func (m *MemoryBackend) SetTracked(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	set, ok := m.namespaces[namespace]
	if !ok {
		set = make(map[string]struct{})
		m.namespaces[namespace] = set
	}
	set[key] = struct{}{}
	m.lru.Add(key, newMemEntry(value, ttl))
	return nil
}

// GetWithTTL returns the value with its remaining lifetime; 0 means no per-key expiry
func (m *MemoryBackend) GetWithTTL(_ context.Context, key string) ([]byte, time.Duration, error) {
	if err := m.failure(); err != nil {
		return nil, 0, err
	}
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, 0, ErrCacheMiss
	}
	if e.expiresAt.IsZero() {
		return e.value, 0, nil
	}
	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		m.lru.Remove(key)
		return nil, 0, ErrCacheMiss
	}
	return e.value, remaining, nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	if err := m.failure(); err != nil {
		return err
	}
	for _, key := range keys {
		m.lru.Remove(key)
	}
	return nil
}

func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if err == ErrCacheMiss {
		return false, nil
	}
	return err == nil, err
}

func (m *MemoryBackend) Track(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.namespaces[namespace]
	if !ok {
		set = make(map[string]struct{})
		m.namespaces[namespace] = set
	}
	set[key] = struct{}{}
	return nil
}

// Members returns live tracked keys and prunes those the LRU already dropped
func (m *MemoryBackend) Members(_ context.Context, namespace string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enumerate {
		return nil, ErrEnumerationUnsupported
	}

	set := m.namespaces[namespace]
	keys := make([]string, 0, len(set))
	for key := range set {
		if !m.lru.Contains(key) {
			delete(set, key)
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *MemoryBackend) Untrack(_ context.Context, namespace string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.namespaces[namespace], key)
	}
	return nil
}
