package ocotel

import (
	"github.com/xoplog/ocbridge/octrace"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type startEndHandler struct {
	cache *SpanCache
	log   zerolog.Logger
}

var _ octrace.StartEndHandler = &startEndHandler{}

// NewStartEndHandler returns the hook that the legacy Tracer calls as
// spans start and end. OnStart creates the mirror span; OnEnd copies
// links added since the start, events, final attributes, and status to
// it, ends it, and then drops the pair from cache.
//
// The legacy Tracer calls OnEnd once per span. A second call for the
// same span is a bug in the caller and is not guarded against.
func NewStartEndHandler(cache *SpanCache) octrace.StartEndHandler {
	return &startEndHandler{
		cache: cache,
		log:   cache.log,
	}
}

func (h *startEndHandler) OnStart(span *octrace.RecordingSpan) {
	_ = h.cache.ToBridge(span)
}

func (h *startEndHandler) OnEnd(span *octrace.RecordingSpan) {
	bridge, startLinks := h.cache.mirrorForEnd(span)
	data := span.ToSpanData()
	for _, link := range data.Links[startLinks:] {
		bridge.AddLink(convertLink(link))
	}
	for _, event := range mergeEvents(data.Annotations, data.MessageEvents) {
		opts := []oteltrace.EventOption{oteltrace.WithTimestamp(nanosToTime(event.unixNano))}
		if len(event.attributes) > 0 {
			opts = append(opts, oteltrace.WithAttributes(event.attributes...))
		}
		bridge.AddEvent(event.name, opts...)
	}
	if attributes := ConvertAttributes(data.Attributes); len(attributes) > 0 {
		bridge.SetAttributes(attributes...)
	}
	if code, description := convertStatus(data.Status); code != codes.Unset {
		bridge.SetStatus(code, description)
	}
	bridge.End(oteltrace.WithTimestamp(nanosToTime(data.EndTime.UnixNano())))
	h.cache.Remove(span)
	h.log.Debug().
		Str("span", data.Name).
		Str("trace_id", data.SpanContext.TraceID.String()).
		Int("events", len(data.Annotations)+len(data.MessageEvents)).
		Msg("mirrored span ended")
}
