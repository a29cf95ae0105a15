package ocotel_test

import (
	"context"
	"sync"
	"testing"

	"github.com/xoplog/ocbridge/ambient"
	"github.com/xoplog/ocbridge/ocotel"
	"github.com/xoplog/ocbridge/octrace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestContextRoundTrip(t *testing.T) {
	tb := newTestBridge(t)
	contexts := tb.Contexts
	span := tb.Tracer.StartSpan("op")
	defer span.End()

	before := tb.Storage.Current()
	ctx := contexts.WithValue(contexts.CurrentContext(), span)
	assert.Same(t, span, contexts.GetValue(ctx))
	assert.Equal(t, before, tb.Storage.Current(), "WithValue does not change the ambient context")
	assert.Nil(t, contexts.GetValue(contexts.CurrentContext()))

	assert.Equal(t, tb.Cache.ToBridge(span), oteltrace.SpanFromContext(ocotel.Context(ctx)))
}

func TestContextAttachDetach(t *testing.T) {
	tb := newTestBridge(t)
	contexts := tb.Contexts
	span := tb.Tracer.StartSpan("op")
	defer span.End()

	ctx := contexts.WithValue(contexts.CurrentContext(), span)
	prior := ctx.Attach()
	assert.Same(t, span, tb.Tracer.CurrentSpan())
	assert.Equal(t, 1, tb.Storage.Depth())
	ctx.Detach(prior)
	assert.Nil(t, tb.Tracer.CurrentSpan())
	assert.Equal(t, 0, tb.Storage.Depth())
}

func TestNativeSpanUnderLegacySpan(t *testing.T) {
	tb := newTestBridge(t)
	parent := tb.Tracer.StartSpan("legacy")
	scope := tb.Tracer.WithSpan(parent)

	_, native := tb.tracerProvider.Tracer("native").Start(tb.Storage.Current(), "native")
	native.End()
	scope.Close()
	parent.End()

	exported := tb.ended(t, "native")
	assert.Equal(t, oteltrace.SpanID(parent.SpanContext().SpanID), exported.Parent().SpanID())
	assert.Equal(t, oteltrace.TraceID(parent.SpanContext().TraceID), exported.SpanContext().TraceID())
}

func TestLegacySpanUnderNativeSpan(t *testing.T) {
	tb := newTestBridge(t)
	ctx, native := tb.tracerProvider.Tracer("native").Start(context.Background(), "native")
	prior := tb.Storage.Attach(ctx)

	current := tb.Tracer.CurrentSpan()
	require.NotNil(t, current)
	assert.False(t, current.IsRecordingEvents())
	assert.Equal(t, octrace.SpanID(native.SpanContext().SpanID()), current.SpanContext().SpanID)

	child := tb.Tracer.StartSpan("legacy")
	child.End()
	tb.Storage.Detach(ctx, prior)
	native.End()

	exported := tb.ended(t, "legacy")
	assert.Equal(t, native.SpanContext().SpanID(), exported.Parent().SpanID())
	assert.Equal(t, native.SpanContext().TraceID(), exported.SpanContext().TraceID())
	assert.Equal(t, oteltrace.SpanID(child.SpanContext().SpanID), exported.SpanContext().SpanID())
}

func TestSharedStorage(t *testing.T) {
	storage := ambient.New(context.Background())
	tb := newTestBridge(t)
	bridge, err := ocotel.New(tb.tracerProvider, storage)
	require.NoError(t, err)
	assert.Same(t, storage, bridge.Storage)

	span := bridge.Tracer.StartSpan("op")
	scope := bridge.Tracer.WithSpan(span)
	assert.Equal(t, 1, storage.Depth())
	assert.Equal(t, bridge.Cache.ToBridge(span), oteltrace.SpanFromContext(storage.Current()))
	scope.Close()
	span.End()
}

func TestForeignCtx(t *testing.T) {
	assert.Equal(t, context.Background(), ocotel.Context(nil))
	other := octrace.NewTracer().ContextManager().CurrentContext()
	assert.Equal(t, context.Background(), ocotel.Context(other))
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := ocotel.New(nil, nil)
	assert.Error(t, err)
	tb := newTestBridge(t)
	_, err = ocotel.New(tb.tracerProvider, nil, ocotel.WithPlaceholderLimits(-1, 0))
	assert.Error(t, err)
	assert.Equal(t, ocotel.DefaultInstrumentationName, tb.Config().InstrumentationName)
}

func TestForksKeepCurrentSpanPerGoroutine(t *testing.T) {
	tb := newTestBridge(t)
	forkA := tb.Fork(context.Background())
	forkB := tb.Fork(context.Background())
	assert.Same(t, tb.Cache, forkA.Cache)
	assert.NotSame(t, forkA.Storage, forkB.Storage)

	aCurrent := make(chan struct{})
	bStarted := make(chan struct{})
	aClosed := make(chan struct{})
	var a, b *octrace.RecordingSpan
	var afterClose octrace.Span
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a = forkA.Tracer.StartSpan("request-a")
		scope := forkA.Tracer.WithSpan(a)
		close(aCurrent)
		<-bStarted
		scope.Close()
		a.End()
		close(aClosed)
	}()
	go func() {
		defer wg.Done()
		<-aCurrent
		b = forkB.Tracer.StartSpan("request-b")
		scope := forkB.Tracer.WithSpan(b)
		close(bStarted)
		<-aClosed
		afterClose = forkB.Tracer.CurrentSpan()
		scope.Close()
		b.End()
	}()
	wg.Wait()

	assert.NotEqual(t, a.SpanContext().TraceID, b.SpanContext().TraceID, "b is not parented under a")
	assert.False(t, b.ToSpanData().ParentSpanID.IsValid())
	assert.Same(t, b, afterClose, "closing a scope on one fork leaves the other alone")
	assert.Nil(t, forkA.Tracer.CurrentSpan())
	assert.Nil(t, forkB.Tracer.CurrentSpan())
	assert.Equal(t, 0, forkA.Storage.Depth())
	assert.Equal(t, 0, forkB.Storage.Depth())
	assert.Equal(t, 0, tb.Cache.Len())
	assert.False(t, tb.ended(t, "request-b").Parent().IsValid())
}

func TestForkRootedAtNativeSpan(t *testing.T) {
	tb := newTestBridge(t)
	ctx, native := tb.tracerProvider.Tracer("native").Start(context.Background(), "incoming")
	fork := tb.Fork(ctx)

	child := fork.Tracer.StartSpan("legacy")
	child.End()
	native.End()

	assert.Equal(t, native.SpanContext().SpanID(), tb.ended(t, "legacy").Parent().SpanID())
	assert.Nil(t, tb.Tracer.CurrentSpan(), "the parent bridge is not affected")
}
