package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Meta describes how a GetOrCompute result was produced
type Meta struct {
	// Cached is true when the value came from the cache without computing
	Cached bool
	// Stale is true when the compute failed and a last-good copy was served
	Stale bool
	// Shared is true when the caller waited on another caller's computation
	Shared bool
}

// Options configures a Layer
type Options struct {
	// StaleTTL is how long last-good copies are kept. Defaults to DefaultStaleTTL.
	StaleTTL time.Duration
	// StaleOn decides which compute errors fall back to a stale copy.
	// Defaults to store unavailability.
	StaleOn func(error) bool
}

// Layer is the get-or-compute cache shared by all request handlers
type Layer struct {
	backend  Backend
	group    singleflight.Group
	staleTTL time.Duration
	staleOn  func(error) bool

	// generations counts invalidations per namespace; a computation that
	// straddles one does not write its result back
	genMu       sync.Mutex
	generations map[string]uint64
}

// trackedSetter writes a value and records it in its namespace as one step,
// so a concurrent pattern invalidation sees both or neither
type trackedSetter interface {
	SetTracked(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
}

// NewLayer creates a cache layer over backend
func NewLayer(backend Backend, opts Options) *Layer {
	if opts.StaleTTL <= 0 {
		opts.StaleTTL = DefaultStaleTTL
	}
	if opts.StaleOn == nil {
		opts.StaleOn = func(err error) bool { return errors.Is(err, store.ErrUnavailable) }
	}
	return &Layer{
		backend:     backend,
		staleTTL:    opts.StaleTTL,
		staleOn:     opts.StaleOn,
		generations: make(map[string]uint64),
	}
}

func (l *Layer) generation(namespace string) uint64 {
	l.genMu.Lock()
	defer l.genMu.Unlock()
	return l.generations[namespace]
}

func (l *Layer) bump(namespaces ...string) {
	l.genMu.Lock()
	defer l.genMu.Unlock()
	for _, ns := range namespaces {
		l.generations[ns]++
	}
}

// setTracked stores raw under key and tracks it. Backends that cannot do
// both at once track first, so the key is never live and unlisted.
func (l *Layer) setTracked(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	ns := namespaceOf(key)
	if ts, ok := l.backend.(trackedSetter); ok {
		return ts.SetTracked(ctx, ns, key, raw, ttl)
	}
	if err := l.backend.Track(ctx, ns, key); err != nil {
		return err
	}
	return l.backend.Set(ctx, key, raw, ttl)
}

// Backend returns the underlying backend
func (l *Layer) Backend() Backend {
	return l.backend
}

// read fetches a raw value; backend errors count as misses
func (l *Layer) read(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	raw, err := l.backend.Get(ctx, key)
	metrics.RecordCacheOperation("get", namespaceOf(key), time.Since(start))
	if err == nil {
		return raw, true
	}
	if !errors.Is(err, ErrCacheMiss) {
		metrics.RecordCacheBackendError(l.backend.Name(), "get")
		logger.Log.Warn("Cache read failed, treating as miss",
			logger.WithCacheKey(key),
			zap.Error(err))
	}
	return nil, false
}

// write stores raw under key with ttl and tracks it in its namespace
func (l *Layer) write(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	start := time.Now()
	err := l.setTracked(ctx, key, raw, ttl)
	metrics.RecordCacheOperation("set", namespaceOf(key), time.Since(start))
	if err != nil {
		metrics.RecordCacheBackendError(l.backend.Name(), "set")
		logger.Log.Warn("Cache write failed",
			logger.WithCacheKey(key),
			zap.Error(err))
		return
	}

	if err := l.backend.Set(ctx, staleKey(key), raw, l.staleTTL); err != nil {
		logger.Log.Debug("Stale copy write failed", logger.WithCacheKey(key), zap.Error(err))
	}
}

// Set encodes v and stores it under key
func (l *Layer) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.setTracked(ctx, key, raw, ttl)
}

// Get decodes the value under key into out; it reports false on a miss
func (l *Layer) Get(ctx context.Context, key string, out interface{}) bool {
	raw, ok := l.read(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Exists reports whether key is currently cached; backend errors read as cold
func (l *Layer) Exists(ctx context.Context, key string) bool {
	ok, err := l.backend.Exists(ctx, key)
	return err == nil && ok
}

// GetOrCompute returns the cached value for key, or runs fn once across all
// concurrent callers of the same key and caches its result for ttl. When fn
// fails with an error the layer's StaleOn accepts, the last-good copy is
// returned with Meta.Stale set.
func GetOrCompute[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, Meta, error) {
	var out T
	name := namespaceOf(key)

	if raw, ok := l.read(ctx, key); ok {
		if err := json.Unmarshal(raw, &out); err == nil {
			metrics.RecordCacheHit(name)
			return out, Meta{Cached: true}, nil
		}
		logger.Log.Warn("Discarding undecodable cache entry", logger.WithCacheKey(key))
	}
	metrics.RecordCacheMiss(name)

	// the shared computation must not die with whichever caller started it
	computeCtx := context.WithoutCancel(ctx)
	res, err, shared := l.group.Do(key, func() (interface{}, error) {
		gen := l.generation(name)
		v, err := fn(computeCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if l.generation(name) != gen {
			logger.Log.Debug("Namespace invalidated during compute, not caching result",
				logger.WithCacheKey(key))
			return raw, nil
		}
		l.write(computeCtx, key, raw, ttl)
		return raw, nil
	})
	if shared {
		metrics.RecordSharedCompute(name)
	}

	if err != nil {
		var zero T
		if !l.staleOn(err) {
			return zero, Meta{Shared: shared}, err
		}
		raw, ok := l.read(ctx, staleKey(key))
		if !ok || json.Unmarshal(raw, &out) != nil {
			return zero, Meta{Shared: shared}, err
		}
		metrics.RecordStaleServed(name)
		logger.Log.Warn("Serving stale cache copy",
			logger.WithCacheKey(key),
			zap.Error(err))
		return out, Meta{Stale: true, Shared: shared}, nil
	}

	if err := json.Unmarshal(res.([]byte), &out); err != nil {
		var zero T
		return zero, Meta{Shared: shared}, err
	}
	return out, Meta{Shared: shared}, nil
}
