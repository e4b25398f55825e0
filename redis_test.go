package uniq

import (
	"context"
	"fmt"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// testRedisStore connects to a live Redis and skips the test when none is
// reachable. Each call gets its own key prefix.
func testRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("UNIQ_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	prefix := fmt.Sprintf("uniq:test:%d:", time.Now().UnixNano())
	rs, err := NewRedisStore(
		WithRedisAddr(addr),
		WithPrefix(prefix),
	)
	if err != nil {
		t.Fatalf("creating redis store: %v", err)
	}

	ctx := context.Background()
	if err := rs.Ping(ctx); err != nil {
		t.Skipf("requires Redis: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := rs.Keys(context.Background(), "")
		if len(keys) > 0 {
			rs.Del(context.Background(), keys...)
		}
		rs.Close()
	})
	return rs
}

// miniRedisStore returns a store backed by an in-process miniredis server.
func miniRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(append([]RedisOption{WithRedisAddr(mr.Addr())}, opts...)...)
	if err != nil {
		t.Fatalf("creating redis store: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func TestRedisStore_Ping(t *testing.T) {
	rs, _ := miniRedisStore(t)
	if err := rs.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestRedisStore_Key(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{
			name:   "no prefix",
			prefix: "",
			key:    "lock:Job-[]",
			want:   "lock:Job-[]",
		},
		{
			name:   "custom prefix",
			prefix: "myapp:",
			key:    "running_lock:Job-[]",
			want:   "myapp:running_lock:Job-[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &RedisStore{prefix: tt.prefix}
			if got := rs.Key(tt.key); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestNewRedisStore_Defaults(t *testing.T) {
	rs, err := NewRedisStore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rs.Close()

	if rs.Prefix() != "" {
		t.Errorf("prefix = %q, want empty", rs.Prefix())
	}
	if !rs.owned {
		t.Error("store should own a client it created")
	}
}

func TestNewRedisStore_WithRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rs, err := NewRedisStore(WithRedisClient(rdb), WithPrefix("x:"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Unwrap() != rdb {
		t.Error("Unwrap did not return injected client")
	}
	if err := rs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Injected client must still be usable.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Errorf("injected client closed by store: %v", err)
	}
}

func TestRedisStore_Primitives(t *testing.T) {
	ctx := context.Background()
	rs, mr := miniRedisStore(t, WithPrefix("app:"))

	if _, found, err := rs.Get(ctx, "k"); err != nil || found {
		t.Fatalf("Get(missing) = %v, %v; want false, nil", found, err)
	}

	ok, err := rs.SetNX(ctx, "k", "1")
	if err != nil || !ok {
		t.Fatalf("SetNX = %v, %v; want true, nil", ok, err)
	}
	ok, err = rs.SetNX(ctx, "k", "2")
	if err != nil || ok {
		t.Fatalf("second SetNX = %v, %v; want false, nil", ok, err)
	}
	if got, _ := mr.Get("app:k"); got != "1" {
		t.Errorf("physical key value = %q, want 1", got)
	}

	if err := rs.Set(ctx, "m", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rs.Expire(ctx, "k", 10*time.Second); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if ttl := mr.TTL("app:k"); ttl != 10*time.Second {
		t.Errorf("TTL = %v, want 10s", ttl)
	}

	if err := rs.Del(ctx, "k", "m", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("app:k") || mr.Exists("app:m") {
		t.Error("keys still present after Del")
	}
	if err := rs.Del(ctx); err != nil {
		t.Errorf("Del() with no keys: %v", err)
	}
}

func TestRedisStore_Keys(t *testing.T) {
	ctx := context.Background()
	rs, mr := miniRedisStore(t, WithPrefix("app:"))

	want := []string{
		`lock:a-["1"]`,
		`lock:b-["{\"id\", \"2\"}"]`,
	}
	for _, k := range want {
		rs.Set(ctx, k, "1")
	}
	rs.Set(ctx, RunKey(want[0]), "1")
	mr.Set("lock:unprefixed", "1")

	keys, err := rs.Keys(ctx, "lock:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	slices.Sort(keys)
	if !slices.Equal(keys, want) {
		t.Errorf("Keys = %v, want %v", keys, want)
	}
}

func TestRedisStore_ErrorsPropagate(t *testing.T) {
	rs, mr := miniRedisStore(t)
	mr.Close()

	ctx := context.Background()
	if _, _, err := rs.Get(ctx, "k"); err == nil {
		t.Error("Get against closed server: want error")
	}
	if _, err := rs.SetNX(ctx, "k", "v"); err == nil {
		t.Error("SetNX against closed server: want error")
	}
}

func TestEscapeGlob(t *testing.T) {
	if got, want := escapeGlob(`a*b?[c]\`), `a\*b\?\[c\]\\`; got != want {
		t.Errorf("escapeGlob = %q, want %q", got, want)
	}
}
