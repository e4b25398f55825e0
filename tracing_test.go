package uniq

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTracedLocker(t *testing.T) (*Locker, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	l := newTestLocker(t, NewMemoryStore(), newTestTypes(t), StaticWorkers{}, WithTracer(tp.Tracer(tracerName)))
	return l, rec
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_HookSpans(t *testing.T) {
	l, rec := newTracedLocker(t)
	ctx := context.Background()

	l.BeforeEnqueue(ctx, "SendEmail", emailArgs)
	l.AroundExecute(ctx, "SendEmail", emailArgs, func(context.Context) error { return nil })
	l.AfterDequeue(ctx, "SendEmail", emailArgs)

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("ended spans = %d, want 3", len(spans))
	}
	wantNames := []string{"uniq.before_enqueue", "uniq.around_execute", "uniq.after_dequeue"}
	for i, span := range spans {
		if span.Name() != wantNames[i] {
			t.Errorf("span[%d] = %q, want %q", i, span.Name(), wantNames[i])
		}
		if span.Status().Code != codes.Ok {
			t.Errorf("span %s status = %v, want Ok", span.Name(), span.Status().Code)
		}
		if v, ok := spanAttr(span, "uniq.lock_key"); !ok || v.AsString() != LockKey("SendEmail", emailArgs) {
			t.Errorf("span %s lock_key = %v", span.Name(), v.AsString())
		}
		if v, ok := spanAttr(span, "uniq.job_type"); !ok || v.AsString() != "SendEmail" {
			t.Errorf("span %s job_type = %v", span.Name(), v.AsString())
		}
	}
	if v, ok := spanAttr(spans[0], "uniq.acquired"); !ok || !v.AsBool() {
		t.Error("before_enqueue span missing uniq.acquired=true")
	}
}

func TestTracing_ErrorStatus(t *testing.T) {
	l, rec := newTracedLocker(t)
	boom := errors.New("job failed")
	l.AroundExecute(context.Background(), "SendEmail", emailArgs, func(context.Context) error { return boom })

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if got := spans[0].Status(); got.Code != codes.Error || got.Description != boom.Error() {
		t.Errorf("status = %+v, want Error %q", got, boom)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("error not recorded as span event")
	}
}

func TestTracing_BodySeesSpanContext(t *testing.T) {
	l, _ := newTracedLocker(t)
	l.AroundExecute(context.Background(), "SendEmail", emailArgs, func(ctx context.Context) error {
		if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
			t.Error("body context carries no span")
		}
		return nil
	})
}
