package uniq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 200

// Compile-time interface checks.
var (
	_ Store   = (*RedisStore)(nil)
	_ Scanner = (*RedisStore)(nil)
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string
	TLSConfig *tls.Config

	existingClient *redis.Client // set by WithRedisClient
}

// RedisStore is a Store backed by Redis. Logical keys are stored under an
// optional prefix, empty by default so lock keys appear in Redis exactly as
// LockKey renders them.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	owned  bool // true if we created the client (and should close it)
}

// NewRedisStore creates a RedisStore. The connection is opened lazily on the
// first command; call Ping to fail fast.
func NewRedisStore(opts ...RedisOption) (*RedisStore, error) {
	cfg := &RedisConfig{
		Addr: "localhost:6379",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	rdb := cfg.existingClient
	owned := rdb == nil
	if rdb == nil {
		rdb = redis.NewClient(&redis.Options{
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			TLSConfig: cfg.TLSConfig,
		})
	}

	return &RedisStore{rdb: rdb, prefix: cfg.Prefix, owned: owned}, nil
}

// Ping checks the Redis connection.
func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the client unless it was supplied through WithRedisClient.
func (rs *RedisStore) Close() error {
	if !rs.owned {
		return nil
	}
	return rs.rdb.Close()
}

// Key returns the physical Redis key for a logical key.
func (rs *RedisStore) Key(key string) string {
	return rs.prefix + key
}

// Unwrap returns the underlying go-redis client for advanced operations.
func (rs *RedisStore) Unwrap() *redis.Client {
	return rs.rdb
}

// Prefix returns the key prefix used by this store.
func (rs *RedisStore) Prefix() string {
	return rs.prefix
}

// Get implements Store.
func (rs *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := rs.rdb.Get(ctx, rs.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements Store.
func (rs *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := rs.rdb.Set(ctx, rs.Key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetNX implements Store.
func (rs *RedisStore) SetNX(ctx context.Context, key, value string) (bool, error) {
	ok, err := rs.rdb.SetNX(ctx, rs.Key(key), value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Expire implements Store.
func (rs *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := rs.rdb.Expire(ctx, rs.Key(key), ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}

// Del implements Store.
func (rs *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	physical := make([]string, len(keys))
	for i, k := range keys {
		physical[i] = rs.Key(k)
	}
	if err := rs.rdb.Del(ctx, physical...).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", strings.Join(keys, ", "), err)
	}
	return nil
}

// Keys implements Scanner using SCAN, so it never blocks Redis the way KEYS does.
func (rs *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(rs.Key(prefix)) + "*"
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := rs.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, rs.prefix))
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// escapeGlob escapes Redis glob metacharacters so s matches literally.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RedisOption configures a RedisConfig.
type RedisOption func(*RedisConfig)

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) RedisOption {
	return func(cfg *RedisConfig) { cfg.Addr = addr }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(cfg *RedisConfig) { cfg.Password = password }
}

// WithRedisDB sets the Redis database number.
func WithRedisDB(db int) RedisOption {
	return func(cfg *RedisConfig) { cfg.DB = db }
}

// WithPrefix sets a prefix prepended to every key this store touches.
func WithPrefix(prefix string) RedisOption {
	return func(cfg *RedisConfig) { cfg.Prefix = prefix }
}

// WithRedisTLS enables TLS. A nil config uses the system CA pool.
func WithRedisTLS(tc *tls.Config) RedisOption {
	return func(cfg *RedisConfig) {
		if tc == nil {
			tc = &tls.Config{} //nolint:gosec // empty = system CA pool
		}
		cfg.TLSConfig = tc
	}
}

// WithRedisClient shares an existing client, e.g. a Sentinel failover
// client or the one a queue library already holds. Connection options are
// ignored and Close leaves the client open.
func WithRedisClient(rdb *redis.Client) RedisOption {
	return func(cfg *RedisConfig) { cfg.existingClient = rdb }
}
