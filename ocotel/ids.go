package ocotel

import (
	"context"
	"crypto/rand"

	"github.com/xoplog/ocbridge/octrace"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type legacyIDsKeyType struct{}

var legacyIDsKey = legacyIDsKeyType{}

func withLegacyIDs(ctx context.Context, sc octrace.SpanContext) context.Context {
	return context.WithValue(ctx, legacyIDsKey, sc)
}

func legacyIDs(ctx context.Context) (octrace.SpanContext, bool) {
	sc, ok := ctx.Value(legacyIDsKey).(octrace.SpanContext)
	return sc, ok && sc.IsValid()
}

// IDGenerator returns a TracerProvider option so that spans mirrored from
// legacy spans reuse the legacy trace and span ids. Spans started any
// other way get random ids.
//
//	tracerProvider := sdktrace.NewTracerProvider(ocotel.IDGenerator(), sdktrace.WithBatcher(...))
//
// A mirrored span whose parent lives in a different trace than its
// legacy counterpart keeps the parent's trace id and gets a random span
// id.
func IDGenerator() sdktrace.TracerProviderOption {
	return sdktrace.WithIDGenerator(idGenerator{})
}

type idGenerator struct{}

var _ sdktrace.IDGenerator = idGenerator{}

func (idGenerator) NewIDs(ctx context.Context) (oteltrace.TraceID, oteltrace.SpanID) {
	if sc, ok := legacyIDs(ctx); ok {
		return oteltrace.TraceID(sc.TraceID), oteltrace.SpanID(sc.SpanID)
	}
	return randomTraceID(), randomSpanID()
}

func (idGenerator) NewSpanID(ctx context.Context, traceID oteltrace.TraceID) oteltrace.SpanID {
	if sc, ok := legacyIDs(ctx); ok && oteltrace.TraceID(sc.TraceID) == traceID {
		return oteltrace.SpanID(sc.SpanID)
	}
	return randomSpanID()
}

func randomTraceID() oteltrace.TraceID {
	var t oteltrace.TraceID
	for !t.IsValid() {
		_, _ = rand.Read(t[:])
	}
	return t
}

func randomSpanID() oteltrace.SpanID {
	var s oteltrace.SpanID
	for !s.IsValid() {
		_, _ = rand.Read(s[:])
	}
	return s
}
