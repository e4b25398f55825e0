package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	uniq "github.com/dougcole/resque-uniq"
)

// Compile-time interface checks.
var (
	_ uniq.Store   = (*Store)(nil)
	_ uniq.Scanner = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS uniq_locks (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS uniq_locks_expires_at_idx ON uniq_locks (expires_at);

CREATE TABLE IF NOT EXISTS uniq_workers (
	id             TEXT PRIMARY KEY,
	host           TEXT NOT NULL DEFAULT '',
	pid            INTEGER NOT NULL DEFAULT 0,
	last_heartbeat TIMESTAMPTZ NOT NULL,
	job            JSONB
);
`

// live is the predicate for rows that have not expired.
const live = `(expires_at IS NULL OR expires_at > NOW())`

// Store is a PostgreSQL implementation of uniq.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	owned  bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new PostgreSQL store from a connection string.
func New(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("uniq/postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("uniq/postgres: connect: %w", err)
	}

	s := NewFromPool(pool, opts...)
	s.owned = true
	return s, nil
}

// NewFromPool creates a store from an existing pool. The caller keeps
// ownership of the pool; Close will not close it.
func NewFromPool(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:   pool,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("uniq/postgres: migrate: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("uniq/postgres: ping: %w", err)
	}
	return nil
}

// Close closes the pool if the store created it.
func (s *Store) Close() {
	if s.owned {
		s.pool.Close()
	}
}

// Get implements uniq.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM uniq_locks WHERE key = $1 AND `+live,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("uniq/postgres: get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements uniq.Store. Like Redis SET, it clears any expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO uniq_locks (key, value, expires_at) VALUES ($1, $2, NULL)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("uniq/postgres: set %s: %w", key, err)
	}
	return nil
}

// SetNX implements uniq.Store. An expired row is taken over in the same
// statement, so the conflict check and the write are atomic.
func (s *Store) SetNX(ctx context.Context, key, value string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO uniq_locks (key, value, expires_at) VALUES ($1, $2, NULL)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL
		WHERE uniq_locks.expires_at IS NOT NULL AND uniq_locks.expires_at <= NOW()`,
		key, value,
	)
	if err != nil {
		return false, fmt.Errorf("uniq/postgres: setnx %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Expire implements uniq.Store.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Del(ctx, key)
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE uniq_locks SET expires_at = NOW() + $2::interval WHERE key = $1 AND `+live,
		key, strconv.FormatInt(ttl.Milliseconds(), 10)+" milliseconds",
	)
	if err != nil {
		return fmt.Errorf("uniq/postgres: expire %s: %w", key, err)
	}
	return nil
}

// Del implements uniq.Store.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM uniq_locks WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("uniq/postgres: del %s: %w", strings.Join(keys, ", "), err)
	}
	return nil
}

// Keys implements uniq.Scanner.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM uniq_locks WHERE left(key, $2) = $1 AND `+live+` ORDER BY key`,
		prefix, len([]rune(prefix)),
	)
	if err != nil {
		return nil, fmt.Errorf("uniq/postgres: keys %s: %w", prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("uniq/postgres: keys %s: %w", prefix, err)
	}
	return keys, nil
}

// PurgeExpired deletes expired rows. Expired rows already behave as absent;
// this only reclaims space.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM uniq_locks WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("uniq/postgres: purge expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
