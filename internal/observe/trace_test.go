package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// withTestTracer installs an always-sampling tracer provider for the duration
// of the test so spans carry valid trace IDs.
func withTestTracer(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
}

func TestTraceIDEmptyWithoutSpan(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID() = %q, want empty", id)
	}
}

func TestStartSpanProducesTraceID(t *testing.T) {
	withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "test-span")
	defer span.End()

	if id := TraceID(ctx); id == "" {
		t.Error("TraceID() is empty inside an active span")
	}
}

func TestLoggerWithoutSpanIsDefault(t *testing.T) {
	// Must not panic and must return a usable logger.
	l := Logger(context.Background())
	if l == nil {
		t.Fatal("Logger returned nil")
	}
}
