package uniq

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for lock spans.
const tracerName = "github.com/dougcole/resque-uniq"

// defaultTracer uses the global TracerProvider, which is a noop unless the
// application installs one.
func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (l *Locker) startSpan(ctx context.Context, name, jobType, lockKey string) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("uniq.job_type", jobType),
			attribute.String("uniq.lock_key", lockKey),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
