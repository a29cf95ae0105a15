/*
Package octrace is the legacy tracing API: spans with annotations,
message events and links, a pluggable ContextManager for the current
span, and a StartEndHandler that is told when spans start and end.

The Tracer records spans but never exports them. Export happens by
installing a StartEndHandler (see package ocotel) that mirrors the
spans into another tracing system.

	tracer := octrace.NewTracer(
		octrace.WithStartEndHandler(handler),
		octrace.WithContextManager(contexts),
	)
	span := tracer.StartSpan("operation")
	scope := tracer.WithSpan(span)
	span.Annotate("something happened", octrace.String("key", "value"))
	scope.Close()
	span.End()
*/
package octrace

import (
	"context"

	"github.com/xoplog/ocbridge/ambient"

	"github.com/zoobzio/clockz"
)

// Tracer creates RecordingSpans. Safe for concurrent use.
type Tracer struct {
	clock    clockz.Clock
	handler  StartEndHandler
	contexts ContextManager
}

type TracerOption func(*Tracer)

// WithClock sets the clock used for start, end, and event timestamps.
func WithClock(clock clockz.Clock) TracerOption {
	return func(t *Tracer) {
		t.clock = clock
	}
}

func WithStartEndHandler(handler StartEndHandler) TracerOption {
	return func(t *Tracer) {
		t.handler = handler
	}
}

func WithContextManager(contexts ContextManager) TracerOption {
	return func(t *Tracer) {
		t.contexts = contexts
	}
}

// NewTracer creates a Tracer. Without options it uses the real clock, a
// handler that does nothing, and a ContextManager backed by a private
// ambient.Storage.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		clock:   clockz.RealClock,
		handler: noopHandler{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.contexts == nil {
		t.contexts = NewContextManager(ambient.New(context.Background()))
	}
	return t
}

func (t *Tracer) now() Timestamp {
	return TimestampFromTime(t.clock.Now())
}

func (t *Tracer) ContextManager() ContextManager { return t.contexts }

type startConfig struct {
	parent       Span
	remoteParent SpanContext
	newRoot      bool
	kind         SpanKind
	sampled      *bool
	links        []Link
}

type StartOption func(*startConfig)

// WithParent makes span the parent. A nil parent is the same as WithNewRoot.
func WithParent(span Span) StartOption {
	return func(c *startConfig) {
		c.parent = span
		c.newRoot = span == nil
	}
}

// WithRemoteParent sets a parent that was propagated from another process.
func WithRemoteParent(sc SpanContext) StartOption {
	return func(c *startConfig) {
		c.remoteParent = sc
	}
}

func WithNewRoot() StartOption {
	return func(c *startConfig) {
		c.newRoot = true
	}
}

func WithSpanKind(kind SpanKind) StartOption {
	return func(c *startConfig) {
		c.kind = kind
	}
}

// WithLinks adds links that are present from the start of the span.
func WithLinks(links ...Link) StartOption {
	return func(c *startConfig) {
		c.links = append(c.links, links...)
	}
}

// WithSampled overrides the sampled flag inherited from the parent.
func WithSampled(sampled bool) StartOption {
	return func(c *startConfig) {
		c.sampled = &sampled
	}
}

// StartSpan creates and starts a span. Unless overridden with an option,
// the parent is the current span of the Tracer's ContextManager. The
// StartEndHandler's OnStart is called before StartSpan returns.
func (t *Tracer) StartSpan(name string, opts ...StartOption) *RecordingSpan {
	var config startConfig
	for _, opt := range opts {
		opt(&config)
	}
	span := &RecordingSpan{
		tracer:    t,
		name:      name,
		kind:      config.kind,
		startTime: t.now(),
	}
	for _, link := range config.links {
		link.Attributes = link.Attributes.copy()
		span.links = append(span.links, link)
	}
	parent := SpanContext{}
	switch {
	case config.remoteParent.IsValid():
		parent = config.remoteParent
		span.hasRemoteParent = true
	case config.newRoot:
	case config.parent != nil:
		parent = config.parent.SpanContext()
	default:
		if current := t.CurrentSpan(); current != nil {
			parent = current.SpanContext()
		}
	}
	if parent.IsValid() {
		span.spanContext = SpanContext{
			TraceID:      parent.TraceID,
			SpanID:       newSpanID(),
			TraceOptions: parent.TraceOptions,
			Tracestate:   parent.Tracestate,
		}
		span.parentSpanID = parent.SpanID
	} else {
		span.spanContext = SpanContext{
			TraceID:      newTraceID(),
			SpanID:       newSpanID(),
			TraceOptions: Sampled,
		}
	}
	if config.sampled != nil {
		if *config.sampled {
			span.spanContext.TraceOptions |= Sampled
		} else {
			span.spanContext.TraceOptions &^= Sampled
		}
	}
	t.handler.OnStart(span)
	return span
}

// CurrentSpan returns the span stored in the current context, or nil.
func (t *Tracer) CurrentSpan() Span {
	return t.contexts.GetValue(t.contexts.CurrentContext())
}

// WithSpan makes span the current span until the returned Scope is
// closed. Scopes must be closed in reverse order of creation.
func (t *Tracer) WithSpan(span Span) Scope {
	ctx := t.contexts.WithValue(t.contexts.CurrentContext(), span)
	prior := ctx.Attach()
	return Scope{attached: ctx, prior: prior}
}
