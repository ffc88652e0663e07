package cooldown

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/listener-ai/listener/internal/safety"
)

// Compile-time assertion that RedisStore satisfies the Store interface.
var _ Store = (*RedisStore)(nil)

// keyPrefix namespaces cooldown keys in a shared Redis instance.
const keyPrefix = "listener:cooldown:"

// RedisStore implements [Store] backed by Redis SET-with-TTL, so multiple
// Listener replicas observe the same cooldown windows. Expiry is delegated
// to Redis key TTLs.
//
// Cooldown is best-effort throttling, so Redis errors fail open: a failed
// read counts as "no cooldown" and a failed write as "nothing applied",
// each logged at warn level.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// RedisOption adjusts the Redis client options used by [NewRedisStore].
type RedisOption func(*redis.Options)

// WithRedisPassword authenticates against a password-protected instance.
func WithRedisPassword(password string) RedisOption {
	return func(o *redis.Options) { o.Password = password }
}

// NewRedisStore connects to the Redis instance at addr and verifies the
// connection with a ping. Windows <= 0 fall back to [DefaultWindow].
func NewRedisStore(ctx context.Context, addr string, window time.Duration, opts ...RedisOption) (*RedisStore, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	ropts := &redis.Options{Addr: addr}
	for _, o := range opts {
		o(ropts)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client, window: window}, nil
}

// Remaining implements [Store.Remaining].
func (s *RedisStore) Remaining(ctx context.Context, userKey string) int {
	ttl, err := s.client.TTL(ctx, keyPrefix+userKey).Result()
	if err != nil {
		slog.Warn("cooldown: redis TTL read failed, treating as no cooldown",
			"user", userKey, "err", err)
		return 0
	}
	// Negative TTLs mean the key is absent or has no expiry.
	return wholeSeconds(ttl)
}

// Apply implements [Store.Apply].
func (s *RedisStore) Apply(ctx context.Context, userKey string, level safety.Level) int {
	if !qualifies(level) {
		return 0
	}
	if err := s.client.Set(ctx, keyPrefix+userKey, string(level), s.window).Err(); err != nil {
		slog.Warn("cooldown: redis SET failed, cooldown not applied",
			"user", userKey, "err", err)
		return 0
	}
	return wholeSeconds(s.window)
}

// Ping verifies the Redis connection, for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
