package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/wudi/quotekit"

// otelTracer implements Tracer using OpenTelemetry.
type otelTracer struct {
	inner trace.Tracer
}

// NewOTelTracer returns a Tracer backed by the global TracerProvider.
// Without a configured provider spans go to a no-op backend.
func NewOTelTracer() Tracer {
	return &otelTracer{inner: otel.Tracer(scopeName)}
}

// OTelTracerFrom wraps a tracer obtained from a specific provider.
func OTelTracerFrom(tp trace.TracerProvider) Tracer {
	return &otelTracer{inner: tp.Tracer(scopeName)}
}

func (t *otelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.inner.Start(ctx, name)
	return ctx, &otelSpan{inner: span}
}

type otelSpan struct {
	inner trace.Span
}

func (s *otelSpan) SetTag(key string, value interface{}) {
	s.inner.SetAttributes(toAttr(key, value))
}

func (s *otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) Finish() {
	s.inner.End()
}

func toAttr(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// compile-time checks
var (
	_ Tracer = (*otelTracer)(nil)
	_ Span   = (*otelSpan)(nil)
)
