package uniq

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) LockerOption {
	return func(lk *Locker) { lk.logger = l }
}

// WithMetrics records lock activity into m.
func WithMetrics(m *Metrics) LockerOption {
	return func(lk *Locker) { lk.metrics = m }
}

// WithTracer sets the tracer used for hook spans. Defaults to the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) LockerOption {
	return func(lk *Locker) { lk.tracer = t }
}

// WithClock overrides the clock used for lock timestamps.
func WithClock(now func() time.Time) LockerOption {
	return func(lk *Locker) { lk.now = now }
}
