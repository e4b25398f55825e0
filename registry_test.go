package uniq

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestRegistry_RegisterDefaults(t *testing.T) {
	r := NewRegistry()
	jt, err := r.Register("email.send")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if jt.LockTTL != DefaultLockTTL {
		t.Errorf("LockTTL = %v, want %v", jt.LockTTL, DefaultLockTTL)
	}
	args := []any{map[string]any{"user_id": 5}}
	if got, want := jt.LockKey(args), LockKey("email.send", args); got != want {
		t.Errorf("LockKey = %q, want %q", got, want)
	}
	if got, want := jt.RunKey(args), RunKey(LockKey("email.send", args)); got != want {
		t.Errorf("RunKey = %q, want %q", got, want)
	}
}

func TestRegistry_RegisterOptions(t *testing.T) {
	r := NewRegistry()
	jt, err := r.Register("report",
		WithLockTTL(0),
		WithFingerprint(func(args []any) string { return Canonicalize(args[:1]) }),
	)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if jt.LockTTL != 0 {
		t.Errorf("LockTTL = %v, want 0", jt.LockTTL)
	}
	// The second argument is ignored by the custom fingerprint.
	if jt.LockKey([]any{"acme", 1}) != jt.LockKey([]any{"acme", 2}) {
		t.Error("custom fingerprint not applied")
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register(""); !errors.Is(err, ErrInvalidJobType) {
		t.Errorf("empty name: err = %v, want ErrInvalidJobType", err)
	}
	if _, err := r.Register("a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register("a", WithLockTTL(time.Minute)); !errors.Is(err, ErrDuplicateJobType) {
		t.Errorf("duplicate: err = %v, want ErrDuplicateJobType", err)
	}
}

func TestRegistry_LookupAndNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := r.Register(name); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	if _, ok := r.Lookup("alpha"); !ok {
		t.Error("Lookup(alpha) not found")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup(missing) found")
	}
	if got, want := r.Names(), []string{"alpha", "mid", "zeta"}; !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
}

func TestRegistry_ResolveLockKeyLongestMatch(t *testing.T) {
	r := NewRegistry()
	r.Register("sync")
	r.Register("sync-full")

	tests := []struct {
		key  string
		want string
	}{
		{LockKey("sync", []any{1}), "sync"},
		{LockKey("sync-full", []any{1}), "sync-full"},
		{"lock:other-[]", ""},
	}
	for _, tt := range tests {
		jt, ok := r.resolveLockKey(tt.key)
		got := ""
		if ok {
			got = jt.Name
		}
		if got != tt.want {
			t.Errorf("resolveLockKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
