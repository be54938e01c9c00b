package cache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"go.uber.org/zap"
)

// TieredBackend reads through a per-instance L1 in front of a shared L2.
// Deletes are broadcast so peers drop their L1 copies; without a broadcaster
// a peer's L1 copy lives at most l1TTL.
type TieredBackend struct {
	l1     *MemoryBackend
	l2     Backend
	l1TTL  time.Duration
	bus    Broadcaster
	origin string
}

// NewTieredBackend layers l1 over l2. bus may be nil for single-instance deployments.
func NewTieredBackend(l1 *MemoryBackend, l2 Backend, l1TTL time.Duration, bus Broadcaster) *TieredBackend {
	return &TieredBackend{
		l1:     l1,
		l2:     l2,
		l1TTL:  l1TTL,
		bus:    bus,
		origin: uuid.New().String(),
	}
}

func (t *TieredBackend) Name() string { return "tiered" }

func (t *TieredBackend) l1Expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > t.l1TTL {
		return t.l1TTL
	}
	return ttl
}

// ttlGetter reports how long a value has left to live; 0 means no expiry
type ttlGetter interface {
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error)
}

// Get backfills L1 for no longer than the L2 copy has left, so a peer never
// serves an entry past its L2 expiry.
func (t *TieredBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := t.l1.Get(ctx, key); err == nil {
		return v, nil
	}

	if tg, ok := t.l2.(ttlGetter); ok {
		v, remaining, err := tg.GetWithTTL(ctx, key)
		if err != nil {
			return nil, err
		}
		_ = t.l1.Set(ctx, key, v, t.l1Expiry(remaining))
		return v, nil
	}

	v, err := t.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = t.l1.Set(ctx, key, v, t.l1TTL)
	return v, nil
}

func (t *TieredBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.l1.Set(ctx, key, value, t.l1Expiry(ttl))
}

func (t *TieredBackend) SetTracked(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ts, ok := t.l2.(trackedSetter); ok {
		if err := ts.SetTracked(ctx, namespace, key, value, ttl); err != nil {
			return err
		}
	} else {
		if err := t.l2.Track(ctx, namespace, key); err != nil {
			return err
		}
		if err := t.l2.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return t.l1.Set(ctx, key, value, t.l1Expiry(ttl))
}

func (t *TieredBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_ = t.l1.Delete(ctx, keys...)
	if err := t.l2.Delete(ctx, keys...); err != nil {
		return err
	}

	if t.bus != nil {
		msg := t.origin + "\n" + strings.Join(keys, "\n")
		if err := t.bus.Publish(ctx, msg); err != nil {
			logger.WarnWithFields("Failed to broadcast cache invalidation", err)
		}
	}
	return nil
}

func (t *TieredBackend) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := t.l1.Exists(ctx, key); ok {
		return true, nil
	}
	return t.l2.Exists(ctx, key)
}

func (t *TieredBackend) Track(ctx context.Context, namespace, key string) error {
	return t.l2.Track(ctx, namespace, key)
}

func (t *TieredBackend) Members(ctx context.Context, namespace string) ([]string, error) {
	return t.l2.Members(ctx, namespace)
}

func (t *TieredBackend) Untrack(ctx context.Context, namespace string, keys ...string) error {
	return t.l2.Untrack(ctx, namespace, keys...)
}

// Listen drops L1 entries deleted by peer instances until ctx is done
func (t *TieredBackend) Listen(ctx context.Context) error {
	if t.bus == nil {
		return nil
	}
	return t.bus.Subscribe(ctx, func(message string) {
		parts := strings.Split(message, "\n")
		if len(parts) < 2 || parts[0] == t.origin {
			return
		}
		_ = t.l1.Delete(ctx, parts[1:]...)
		logger.Log.Debug("Dropped L1 entries invalidated by peer",
			zap.String("peer", parts[0]),
			zap.Int("keys", len(parts)-1))
	})
}

var (
	_ Backend       = (*TieredBackend)(nil)
	_ trackedSetter = (*TieredBackend)(nil)
)
