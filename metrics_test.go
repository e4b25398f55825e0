package uniq

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordsLockActivity(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)
	store := NewMemoryStore()
	l := newTestLocker(t, store, newTestTypes(t), StaticWorkers{}, WithMetrics(m))

	l.BeforeEnqueue(ctx, "SendEmail", emailArgs)
	l.BeforeEnqueue(ctx, "SendEmail", emailArgs)
	l.AroundExecute(ctx, "SendEmail", emailArgs, func(context.Context) error { return nil })
	l.BeforeEnqueue(ctx, "SendEmail", emailArgs)
	l.AfterDequeue(ctx, "SendEmail", emailArgs)
	l.AroundExecute(ctx, "SendEmail", emailArgs, func(context.Context) error { return errors.New("fail") })

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"acquired", m.acquisitions.WithLabelValues("SendEmail", resultAcquired), 2},
		{"locked", m.acquisitions.WithLabelValues("SendEmail", resultLocked), 1},
		{"released by execute", m.releases.WithLabelValues("SendEmail", releaseExecute), 2},
		{"released by dequeue", m.releases.WithLabelValues("SendEmail", releaseDequeue), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.executions); n != 2 {
		t.Errorf("execution series = %d, want 2 (ok and error)", n)
	}
	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 6 {
		t.Errorf("gathered series = %d, want 6", n)
	}
}

func TestMetrics_StaleReleaseCounted(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(nil)
	store := NewMemoryStore()
	key := LockKey("SendEmail", emailArgs)
	store.Set(ctx, key, "1")
	store.Set(ctx, RunKey(key), "1")

	l := newTestLocker(t, store, newTestTypes(t), StaticWorkers{}, WithMetrics(m))
	l.BeforeEnqueue(ctx, "SendEmail", emailArgs)

	if got := testutil.ToFloat64(m.releases.WithLabelValues("SendEmail", releaseStale)); got != 1 {
		t.Errorf("stale releases = %v, want 1", got)
	}
}

func TestMetrics_ErrorResult(t *testing.T) {
	m := NewMetrics(nil)
	store := &failingStore{Store: NewMemoryStore(), failGet: errors.New("down")}
	l := newTestLocker(t, store, newTestTypes(t), StaticWorkers{}, WithMetrics(m))
	l.BeforeEnqueue(context.Background(), "SendEmail", emailArgs)

	if got := testutil.ToFloat64(m.acquisitions.WithLabelValues("SendEmail", resultError)); got != 1 {
		t.Errorf("error results = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.recordAcquire("x", resultAcquired)
	m.recordRelease("x", releaseStale)
	m.recordExecution("x", "ok", 0)
}
