package octrace

import (
	"sync"

	"github.com/muir/list"
)

// Span is the legacy span API used by instrumentation. There are two
// implementations: *RecordingSpan, which is backed by a record kept by
// the Tracer, and *UnbackedSpan, which only carries identifiers and
// ignores all mutation.
type Span interface {
	SpanContext() SpanContext
	IsRecordingEvents() bool
	AddAttributes(attributes ...Attribute)
	Annotate(description string, attributes ...Attribute)
	AddMessageEvent(event MessageEvent)
	AddLink(link Link)
	SetStatus(status Status)
	End()
}

var (
	_ Span = &RecordingSpan{}
	_ Span = &UnbackedSpan{}
)

// SpanData is an immutable snapshot of a RecordingSpan.
type SpanData struct {
	Name            string
	SpanContext     SpanContext
	ParentSpanID    SpanID
	HasRemoteParent bool
	Kind            SpanKind
	StartTime       Timestamp
	EndTime         Timestamp // zero until the span has ended
	Attributes      Attributes
	Annotations     []TimedAnnotation
	MessageEvents   []TimedMessageEvent
	Links           []Link
	Status          Status
}

// ParentSpanContext returns the identifiers of the parent, which always
// shares the trace id. The result is invalid for root spans.
func (d *SpanData) ParentSpanContext() SpanContext {
	if !d.ParentSpanID.IsValid() {
		return SpanContext{}
	}
	return SpanContext{
		TraceID:      d.SpanContext.TraceID,
		SpanID:       d.ParentSpanID,
		TraceOptions: d.SpanContext.TraceOptions,
		Tracestate:   d.SpanContext.Tracestate,
	}
}

// RecordingSpan is the backed span variant. It is safe for concurrent
// use. Once End has been called, the span is immutable.
type RecordingSpan struct {
	tracer *Tracer

	lock            sync.Mutex
	name            string
	spanContext     SpanContext
	parentSpanID    SpanID
	hasRemoteParent bool
	kind            SpanKind
	startTime       Timestamp
	endTime         Timestamp
	ended           bool
	attributes      Attributes
	annotations     []TimedAnnotation
	messageEvents   []TimedMessageEvent
	links           []Link
	status          Status
}

func (s *RecordingSpan) SpanContext() SpanContext { return s.spanContext }
func (s *RecordingSpan) IsRecordingEvents() bool  { return true }
func (s *RecordingSpan) Name() string             { return s.name }

func (s *RecordingSpan) IsEnded() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ended
}

func (s *RecordingSpan) AddAttributes(attributes ...Attribute) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ended {
		return
	}
	if s.attributes == nil {
		s.attributes = make(Attributes, len(attributes))
	}
	for _, a := range attributes {
		s.attributes[a.Key] = a.Value
	}
}

func (s *RecordingSpan) Annotate(description string, attributes ...Attribute) {
	now := s.tracer.now()
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ended {
		return
	}
	s.annotations = append(s.annotations, TimedAnnotation{
		Time: now,
		Annotation: Annotation{
			Description: description,
			Attributes:  attributesOf(attributes),
		},
	})
}

func (s *RecordingSpan) AddMessageEvent(event MessageEvent) {
	now := s.tracer.now()
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ended {
		return
	}
	s.messageEvents = append(s.messageEvents, TimedMessageEvent{
		Time:         now,
		MessageEvent: event,
	})
}

func (s *RecordingSpan) AddLink(link Link) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ended {
		return
	}
	link.Attributes = link.Attributes.copy()
	s.links = append(s.links, link)
}

func (s *RecordingSpan) SetStatus(status Status) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ended {
		return
	}
	s.status = status
}

// End stamps the end time and notifies the Tracer's StartEndHandler.
// Calls after the first are ignored.
func (s *RecordingSpan) End() {
	now := s.tracer.now()
	s.lock.Lock()
	if s.ended {
		s.lock.Unlock()
		return
	}
	s.ended = true
	s.endTime = now
	s.lock.Unlock()
	s.tracer.handler.OnEnd(s)
}

// ToSpanData returns a snapshot. The slices and maps in the result are
// copies and may be retained by the caller.
func (s *RecordingSpan) ToSpanData() *SpanData {
	s.lock.Lock()
	defer s.lock.Unlock()
	links := list.Copy(s.links)
	for i := range links {
		links[i].Attributes = links[i].Attributes.copy()
	}
	return &SpanData{
		Name:            s.name,
		SpanContext:     s.spanContext,
		ParentSpanID:    s.parentSpanID,
		HasRemoteParent: s.hasRemoteParent,
		Kind:            s.kind,
		StartTime:       s.startTime,
		EndTime:         s.endTime,
		Attributes:      s.attributes.copy(),
		Annotations:     list.Copy(s.annotations),
		MessageEvents:   list.Copy(s.messageEvents),
		Links:           links,
		Status:          s.status,
	}
}

// UnbackedSpan is a span view that has identifiers but no record
// behind it. All mutators are no-ops.
type UnbackedSpan struct {
	spanContext SpanContext
}

func NewUnbackedSpan(sc SpanContext) *UnbackedSpan {
	return &UnbackedSpan{spanContext: sc}
}

func (s *UnbackedSpan) SpanContext() SpanContext         { return s.spanContext }
func (s *UnbackedSpan) IsRecordingEvents() bool          { return false }
func (s *UnbackedSpan) AddAttributes(...Attribute)       {}
func (s *UnbackedSpan) Annotate(string, ...Attribute)    {}
func (s *UnbackedSpan) AddMessageEvent(MessageEvent)     {}
func (s *UnbackedSpan) AddLink(Link)                     {}
func (s *UnbackedSpan) SetStatus(Status)                 {}
func (s *UnbackedSpan) End()                             {}
