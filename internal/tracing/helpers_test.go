package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return recorder
}

func singleSpan(t *testing.T, recorder *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	return spans[0]
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, a := range span.Attributes() {
		out[a.Key] = a.Value
	}
	return out
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"query experts", "experts", DBOperationQuery, "query experts"},
		{"insert experiences", "experiences", DBOperationInsert, "insert experiences"},
		{"update attributes", "attributes", DBOperationUpdate, "update attributes"},
		{"delete idempotency keys", "idempotency_keys", DBOperationDelete, "delete idempotency_keys"},
		{"exec without table", "", DBOperationExec, "exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := recordSpans(t)

			_, end := StartDBSpan(context.Background(), tt.table, tt.operation)
			end(nil)

			span := singleSpan(t, recorder)
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}

			attrs := spanAttrs(span)
			if got := attrs["db.system"].AsString(); got != "postgresql" {
				t.Errorf("db.system = %q, want postgresql", got)
			}
			if got := attrs["db.operation"].AsString(); got != string(tt.operation) {
				t.Errorf("db.operation = %q, want %q", got, tt.operation)
			}
			table, hasTable := attrs["db.sql.table"]
			if tt.table == "" && hasTable {
				t.Error("db.sql.table should be omitted when no table is given")
			}
			if tt.table != "" && table.AsString() != tt.table {
				t.Errorf("db.sql.table = %q, want %q", table.AsString(), tt.table)
			}
		})
	}
}

func TestStartDBSpan_ErrorStatus(t *testing.T) {
	recorder := recordSpans(t)
	dbErr := errors.New("connection reset")

	_, end := StartDBSpan(context.Background(), "experts", DBOperationQuery)
	end(dbErr)

	span := singleSpan(t, recorder)
	if span.Status().Code != codes.Error {
		t.Errorf("status = %s, want Error", span.Status().Code)
	}
	if span.Status().Description != dbErr.Error() {
		t.Errorf("status description = %q, want %q", span.Status().Description, dbErr.Error())
	}
}

func TestStartSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, end := StartSpan(context.Background(), "score_experiences")
	end(nil)

	span := singleSpan(t, recorder)
	if span.Name() != "score_experiences" {
		t.Errorf("span name = %q, want score_experiences", span.Name())
	}
	if span.Status().Code == codes.Error {
		t.Errorf("successful span has error status: %s", span.Status().Description)
	}
}

func TestStartSpan_ErrorStatus(t *testing.T) {
	recorder := recordSpans(t)

	_, end := StartSpan(context.Background(), "extract_attributes")
	end(errors.New("completion service unavailable"))

	if span := singleSpan(t, recorder); span.Status().Code != codes.Error {
		t.Errorf("status = %s, want Error", span.Status().Code)
	}
}

func TestAddEvent(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "rank")
	AddEvent(ctx, "extraction_cache_hit",
		attribute.String("cache_key", "extraction:abc123"),
		attribute.Int("attribute_count", 4),
	)
	span.End()

	events := singleSpan(t, recorder).Events()
	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	if events[0].Name != "extraction_cache_hit" {
		t.Errorf("event name = %q, want extraction_cache_hit", events[0].Name)
	}
	if len(events[0].Attributes) != 2 {
		t.Errorf("event has %d attributes, want 2", len(events[0].Attributes))
	}
}

func TestSetAttributes(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "rank")
	SetAttributes(ctx,
		attribute.Int("expert_count", 12),
		attribute.String("endpoint", "/search/experts"),
	)
	span.End()

	attrs := spanAttrs(singleSpan(t, recorder))
	if got := attrs["expert_count"].AsInt64(); got != 12 {
		t.Errorf("expert_count = %d, want 12", got)
	}
	if got := attrs["endpoint"].AsString(); got != "/search/experts" {
		t.Errorf("endpoint = %q, want /search/experts", got)
	}
}
