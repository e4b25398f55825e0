package uniq

import "testing"

func TestLockKey_Format(t *testing.T) {
	got := LockKey("SendEmail", []any{map[string]any{"user_id": 5}})
	want := `lock:SendEmail-["{\"user_id\", \"5\"}"]`
	if got != want {
		t.Errorf("LockKey = %s, want %s", got, want)
	}
}

func TestRunKey_RoundTrip(t *testing.T) {
	lock := LockKey("SendEmail", []any{map[string]any{"user_id": 5}})
	run := RunKey(lock)

	if run != "running_"+lock {
		t.Errorf("RunKey = %q, want prefix running_", run)
	}
	if got := LockKeyFromRunKey(run); got != lock {
		t.Errorf("LockKeyFromRunKey(RunKey(x)) = %q, want %q", got, lock)
	}
}

func TestLockKeyFromRunKey_NoPrefix(t *testing.T) {
	tests := []string{
		"lock:Job-[]",
		"",
		"xrunning_lock:Job-[]",
	}
	for _, in := range tests {
		if got := LockKeyFromRunKey(in); got != in {
			t.Errorf("LockKeyFromRunKey(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestLockKeyFromRunKey_StripsOnce(t *testing.T) {
	in := "running_running_lock:Job-[]"
	if got, want := LockKeyFromRunKey(in), "running_lock:Job-[]"; got != want {
		t.Errorf("LockKeyFromRunKey(%q) = %q, want %q", in, got, want)
	}
}

func TestLockKey_EmptyArgs(t *testing.T) {
	if got, want := LockKey("Cleanup", nil), "lock:Cleanup-[]"; got != want {
		t.Errorf("LockKey = %q, want %q", got, want)
	}
}
