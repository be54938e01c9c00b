package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"go.uber.org/zap"
)

// DefaultInvalidationChannel carries L1 invalidations between instances
const DefaultInvalidationChannel = "cache:invalidate"

// namespace key sets outlive the longest entry TTL they index
const keySetTTL = 25 * time.Hour

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Channel  string
}

// RedisBackend is the shared L2 backend. Namespace key sets live under
// "keys:{namespace}"; SCAN covers namespaces whose set has gone missing.
type RedisBackend struct {
	client  *redis.Client
	channel string
}

// NewRedisBackend creates a Redis backend with connection pooling and checks the connection
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		_ = client.Close()
		return nil, err
	}

	logger.Log.Info("Redis cache backend connected", zap.String("address", addr))
	return NewRedisBackendFromClient(client, cfg.Channel), nil
}

// NewRedisBackendFromClient wraps an existing client
func NewRedisBackendFromClient(client *redis.Client, channel string) *RedisBackend {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &RedisBackend{client: client, channel: channel}
}

// Close closes the Redis connection gracefully
func (r *RedisBackend) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Ping tests the Redis connection
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) observe(op string, start time.Time, err error) {
	metrics.RecordCacheOperation(op, r.Name(), time.Since(start))
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		metrics.RecordCacheBackendError(r.Name(), op)
	}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (value []byte, err error) {
	defer func(start time.Time) { r.observe("get", start, err) }(time.Now())
	value, err = r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return value, err
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	defer func(start time.Time) { r.observe("set", start, err) }(time.Now())
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	defer func(start time.Time) { r.observe("delete", start, err) }(time.Now())
	return r.client.Del(ctx, keys...).Err()
}

// SetTracked writes key and adds it to the namespace set in one transaction
func (r *RedisBackend) SetTracked(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) (err error) {
	defer func(start time.Time) { r.observe("set", start, err) }(time.Now())
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, keySet(namespace), key)
	pipe.Expire(ctx, keySet(namespace), keySetTTL)
	pipe.Set(ctx, key, value, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// GetWithTTL returns the value and its remaining lifetime; 0 means no expiry
func (r *RedisBackend) GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, err error) {
	defer func(start time.Time) { r.observe("get", start, err) }(time.Now())
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err = pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}
	value, err = get.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrCacheMiss
	}
	if err != nil {
		return nil, 0, err
	}
	if ttl = pttl.Val(); ttl < 0 {
		ttl = 0
	}
	return value, ttl, nil
}

func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func keySet(namespace string) string {
	return "keys:" + namespace
}

func (r *RedisBackend) Track(ctx context.Context, namespace, key string) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, keySet(namespace), key)
	pipe.Expire(ctx, keySet(namespace), keySetTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// liveMembers lists a namespace set and drops members whose key has expired,
// atomically so a key written meanwhile is never dropped
var liveMembers = redis.NewScript(`
local live = {}
for _, key in ipairs(redis.call('SMEMBERS', KEYS[1])) do
	if redis.call('EXISTS', key) == 1 then
		table.insert(live, key)
	else
		redis.call('SREM', KEYS[1], key)
	end
end
return live
`)

// Members returns the live keys of the namespace set, pruning expired ones.
// The set is refreshed by every write, so without pruning it would keep every
// key ever served.
func (r *RedisBackend) Members(ctx context.Context, namespace string) ([]string, error) {
	members, err := liveMembers.Run(ctx, r.client, []string{keySet(namespace)}).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(members) > 0 {
		return members, nil
	}

	// no key set: fall back to scanning the keyspace
	var keys []string
	iter := r.client.Scan(ctx, 0, namespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *RedisBackend) Untrack(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	return r.client.SRem(ctx, keySet(namespace), members...).Err()
}

// Publish sends an invalidation message to every subscribed instance
func (r *RedisBackend) Publish(ctx context.Context, message string) error {
	return r.client.Publish(ctx, r.channel, message).Err()
}

// Subscribe delivers invalidation messages to handler until ctx is done
func (r *RedisBackend) Subscribe(ctx context.Context, handler func(message string)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			}
		}
	}()

	logger.Log.Info("Subscribed to cache invalidation channel", zap.String("channel", r.channel))
	return nil
}

var (
	_ Backend       = (*RedisBackend)(nil)
	_ Broadcaster   = (*RedisBackend)(nil)
	_ trackedSetter = (*RedisBackend)(nil)
	_ ttlGetter     = (*RedisBackend)(nil)
)
