package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog(slog.New(slog.NewJSONHandler(&buf, nil))).With(String(KeyRunID, "r1"))
	l.Warn("zone clamped", Int(KeyPage, 2), Float("dx", 1.5), Error("err", errors.New("outside")))
	l.Debug("dropped below the handler level")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec["msg"] != "zone clamped" {
		t.Fatalf("record = %v", rec)
	}
	if rec["run_id"] != "r1" || rec["page"] != float64(2) || rec["dx"] != 1.5 || rec["err"] != "outside" {
		t.Fatalf("fields = %v", rec)
	}
}

func TestOTelTracer(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	_, span := OTelTracerFrom(tp).StartSpan(context.Background(), "redact")
	span.SetTag(KeyPages, 3)
	span.SetError(errors.New("boom"))
	span.Finish()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("spans = %d", len(ended))
	}
	s := ended[0]
	if s.Name() != "redact" || s.Status().Code != codes.Error {
		t.Fatalf("span %q status %v", s.Name(), s.Status())
	}
	if attrs := s.Attributes(); len(attrs) != 1 || attrs[0].Value.AsInt64() != 3 {
		t.Fatalf("attributes = %v", attrs)
	}
}

func TestNewRunID(t *testing.T) {
	id, err := uuid.Parse(NewRunID())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.Version() != 7 {
		t.Fatalf("version = %d", id.Version())
	}
}
