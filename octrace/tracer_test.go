package octrace_test

import (
	"sync"
	"testing"
	"time"

	"github.com/xoplog/ocbridge/octrace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingHandler struct {
	lock   sync.Mutex
	starts []*octrace.RecordingSpan
	ends   []*octrace.RecordingSpan
}

func (h *recordingHandler) OnStart(span *octrace.RecordingSpan) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.starts = append(h.starts, span)
}

func (h *recordingHandler) OnEnd(span *octrace.RecordingSpan) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ends = append(h.ends, span)
}

func TestStartEndHandlerCalls(t *testing.T) {
	handler := &recordingHandler{}
	tracer := octrace.NewTracer(octrace.WithStartEndHandler(handler))

	span := tracer.StartSpan("op")
	require.Len(t, handler.starts, 1)
	assert.Same(t, span, handler.starts[0])
	assert.Empty(t, handler.ends)

	span.End()
	span.End()
	require.Len(t, handler.ends, 1, "OnEnd is called once")
	assert.Same(t, span, handler.ends[0])
	assert.True(t, span.IsEnded())
}

func TestSpanDataTimestamps(t *testing.T) {
	clock := clockz.NewFakeClockAt(t0)
	tracer := octrace.NewTracer(octrace.WithClock(clock))

	span := tracer.StartSpan("op", octrace.WithSpanKind(octrace.SpanKindServer))
	clock.Advance(100 * time.Millisecond)
	span.Annotate("event1", octrace.String("k", "v"))
	clock.Advance(50 * time.Millisecond)
	span.AddMessageEvent(octrace.MessageEvent{Type: octrace.MessageEventTypeSent, ID: 7, UncompressedSize: 10, CompressedSize: 5})
	clock.Advance(50 * time.Millisecond)
	span.End()

	data := span.ToSpanData()
	assert.Equal(t, "op", data.Name)
	assert.Equal(t, octrace.SpanKindServer, data.Kind)
	assert.Equal(t, t0.UnixNano(), data.StartTime.UnixNano())
	assert.Equal(t, t0.Add(200*time.Millisecond).UnixNano(), data.EndTime.UnixNano())
	require.Len(t, data.Annotations, 1)
	assert.Equal(t, "event1", data.Annotations[0].Description)
	assert.Equal(t, octrace.StringValue("v"), data.Annotations[0].Attributes["k"])
	assert.Equal(t, t0.Add(100*time.Millisecond).UnixNano(), data.Annotations[0].Time.UnixNano())
	require.Len(t, data.MessageEvents, 1)
	assert.Equal(t, int64(7), data.MessageEvents[0].ID)
	assert.Equal(t, t0.Add(150*time.Millisecond).UnixNano(), data.MessageEvents[0].Time.UnixNano())
}

func TestMutationAfterEndIgnored(t *testing.T) {
	tracer := octrace.NewTracer()
	span := tracer.StartSpan("op")
	span.AddAttributes(octrace.Int64("before", 1))
	span.End()

	span.AddAttributes(octrace.Int64("after", 2))
	span.Annotate("late")
	span.AddMessageEvent(octrace.MessageEvent{ID: 1})
	span.AddLink(octrace.Link{})
	span.SetStatus(octrace.Status{Code: 2})

	data := span.ToSpanData()
	assert.Equal(t, octrace.Attributes{"before": octrace.Int64Value(1)}, data.Attributes)
	assert.Empty(t, data.Annotations)
	assert.Empty(t, data.MessageEvents)
	assert.Empty(t, data.Links)
	assert.True(t, data.Status.IsOK())
}

func TestSpanDataIsACopy(t *testing.T) {
	tracer := octrace.NewTracer()
	span := tracer.StartSpan("op")
	span.AddAttributes(octrace.Bool("a", true))
	span.AddLink(octrace.Link{Attributes: octrace.Attributes{"x": octrace.StringValue("y")}})
	data := span.ToSpanData()
	data.Attributes["a"] = octrace.BoolValue(false)
	data.Links[0].Attributes["x"] = octrace.StringValue("z")

	again := span.ToSpanData()
	assert.True(t, again.Attributes["a"].AsBool())
	assert.Equal(t, "y", again.Links[0].Attributes["x"].AsString())
}

func TestWithLinks(t *testing.T) {
	attributes := octrace.Attributes{"x": octrace.StringValue("y")}
	span := octrace.NewTracer().StartSpan("op", octrace.WithLinks(
		octrace.Link{TraceID: octrace.TraceID{1}, SpanID: octrace.SpanID{2}, Attributes: attributes},
	))
	attributes["x"] = octrace.StringValue("z")
	span.AddLink(octrace.Link{TraceID: octrace.TraceID{3}, SpanID: octrace.SpanID{4}})

	data := span.ToSpanData()
	require.Len(t, data.Links, 2)
	assert.Equal(t, octrace.SpanID{2}, data.Links[0].SpanID)
	assert.Equal(t, "y", data.Links[0].Attributes["x"].AsString())
	assert.Equal(t, octrace.SpanID{4}, data.Links[1].SpanID)
}

func TestParentFromCurrentSpan(t *testing.T) {
	tracer := octrace.NewTracer()
	parent := tracer.StartSpan("parent")
	assert.Nil(t, tracer.CurrentSpan())

	scope := tracer.WithSpan(parent)
	assert.Same(t, parent, tracer.CurrentSpan())
	child := tracer.StartSpan("child")
	scope.Close()
	assert.Nil(t, tracer.CurrentSpan())

	data := child.ToSpanData()
	assert.Equal(t, parent.SpanContext().TraceID, data.SpanContext.TraceID)
	assert.Equal(t, parent.SpanContext().SpanID, data.ParentSpanID)
	assert.NotEqual(t, parent.SpanContext().SpanID, data.SpanContext.SpanID)
	assert.False(t, data.HasRemoteParent)
	assert.Equal(t, parent.SpanContext(), data.ParentSpanContext())
}

func TestParentOptions(t *testing.T) {
	tracer := octrace.NewTracer()
	parent := tracer.StartSpan("parent")
	scope := tracer.WithSpan(parent)
	defer scope.Close()

	root := tracer.StartSpan("root", octrace.WithNewRoot())
	assert.NotEqual(t, parent.SpanContext().TraceID, root.SpanContext().TraceID)
	assert.False(t, root.ToSpanData().ParentSpanID.IsValid())
	assert.True(t, root.SpanContext().TraceOptions.IsSampled())

	other := tracer.StartSpan("other")
	explicit := tracer.StartSpan("explicit", octrace.WithParent(other))
	assert.Equal(t, other.SpanContext().SpanID, explicit.ToSpanData().ParentSpanID)

	remote := octrace.SpanContext{
		TraceID: octrace.TraceID{1, 2, 3},
		SpanID:  octrace.SpanID{4, 5, 6},
	}
	fromRemote := tracer.StartSpan("remote", octrace.WithRemoteParent(remote), octrace.WithSampled(true))
	data := fromRemote.ToSpanData()
	assert.True(t, data.HasRemoteParent)
	assert.Equal(t, remote.TraceID, data.SpanContext.TraceID)
	assert.Equal(t, remote.SpanID, data.ParentSpanID)
	assert.True(t, data.SpanContext.TraceOptions.IsSampled())

	unsampled := tracer.StartSpan("unsampled", octrace.WithSampled(false))
	assert.False(t, unsampled.SpanContext().TraceOptions.IsSampled())
}

func TestNestedScopes(t *testing.T) {
	tracer := octrace.NewTracer()
	a := tracer.StartSpan("a")
	b := tracer.StartSpan("b")

	scopeA := tracer.WithSpan(a)
	scopeB := tracer.WithSpan(b)
	assert.Same(t, b, tracer.CurrentSpan())
	scopeB.Close()
	assert.Same(t, a, tracer.CurrentSpan())
	scopeA.Close()
	assert.Nil(t, tracer.CurrentSpan())

	var zero octrace.Scope
	zero.Close()
}

func TestUnbackedSpanIgnoresMutation(t *testing.T) {
	sc := octrace.SpanContext{TraceID: octrace.TraceID{9}, SpanID: octrace.SpanID{8}}
	var span octrace.Span = octrace.NewUnbackedSpan(sc)
	span.AddAttributes(octrace.String("k", "v"))
	span.Annotate("ignored")
	span.AddMessageEvent(octrace.MessageEvent{ID: 1})
	span.AddLink(octrace.Link{})
	span.SetStatus(octrace.Status{Code: 1})
	span.End()
	assert.False(t, span.IsRecordingEvents())
	assert.Equal(t, sc, span.SpanContext())
}

func TestConcurrentAnnotations(t *testing.T) {
	tracer := octrace.NewTracer()
	span := tracer.StartSpan("op")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				span.Annotate("a")
				span.AddAttributes(octrace.Int64("n", int64(j)))
			}
		}()
	}
	wg.Wait()
	span.End()
	assert.Len(t, span.ToSpanData().Annotations, 200)
}
