package ocotel

import (
	"context"
	"strconv"
	"time"

	"github.com/xoplog/ocbridge/octrace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	messageEventTypeKey             = attribute.Key("message.event.type")
	messageEventUncompressedSizeKey = attribute.Key("message.event.size.uncompressed")
	messageEventCompressedSizeKey   = attribute.Key("message.event.size.compressed")
	linkTypeKey                     = attribute.Key("link.type")
)

var emptyTraceState = oteltrace.TraceState{}

// ConvertAttribute maps one legacy attribute. The second return value is
// false for kinds that have no OTEL equivalent; those are dropped.
func ConvertAttribute(key string, value octrace.AttributeValue) (attribute.KeyValue, bool) {
	switch value.Kind() {
	case octrace.StringKind:
		return attribute.String(key, value.AsString()), true
	case octrace.BoolKind:
		return attribute.Bool(key, value.AsBool()), true
	case octrace.Int64Kind:
		return attribute.Int64(key, value.AsInt64()), true
	case octrace.Float64Kind:
		return attribute.Float64(key, value.AsFloat64()), true
	default:
		return attribute.KeyValue{}, false
	}
}

// ConvertAttributes maps a legacy attribute set, sorted by key. Nil in,
// nil out.
func ConvertAttributes(attributes octrace.Attributes) []attribute.KeyValue {
	if attributes == nil {
		return nil
	}
	converted := make([]attribute.KeyValue, 0, len(attributes))
	for _, k := range attributes.Keys() {
		if kv, ok := ConvertAttribute(k, attributes[k]); ok {
			converted = append(converted, kv)
		}
	}
	return converted
}

// ConvertAnnotation returns the event name, attributes, and absolute
// time in nanoseconds since the Unix epoch.
func ConvertAnnotation(annotation octrace.TimedAnnotation) (string, []attribute.KeyValue, int64) {
	return annotation.Description,
		ConvertAttributes(annotation.Attributes),
		annotation.Time.UnixNano()
}

// ConvertMessageEvent names the event with the decimal message id and
// always produces exactly three attributes: type, uncompressed size, and
// compressed size.
func ConvertMessageEvent(event octrace.TimedMessageEvent) (string, []attribute.KeyValue, int64) {
	return strconv.FormatInt(event.ID, 10),
		[]attribute.KeyValue{
			messageEventTypeKey.String(event.Type.String()),
			messageEventUncompressedSizeKey.Int64(event.UncompressedSize),
			messageEventCompressedSizeKey.Int64(event.CompressedSize),
		},
		event.Time.UnixNano()
}

// ConvertLink maps the identifiers of a link. Legacy links do not carry
// flags or trace state so the result is unsampled with empty state.
func ConvertLink(link octrace.Link) oteltrace.SpanContext {
	return oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    oteltrace.TraceID(link.TraceID),
		SpanID:     oteltrace.SpanID(link.SpanID),
		TraceFlags: 0,
		TraceState: emptyTraceState,
		Remote:     true,
	})
}

func convertLinks(links []octrace.Link) []oteltrace.Link {
	if len(links) == 0 {
		return nil
	}
	converted := make([]oteltrace.Link, 0, len(links))
	for _, link := range links {
		converted = append(converted, convertLink(link))
	}
	return converted
}

// convertLink keeps the link attributes and adds the link type, if set,
// as one more attribute.
func convertLink(link octrace.Link) oteltrace.Link {
	attributes := ConvertAttributes(link.Attributes)
	if link.Type != octrace.LinkTypeUnspecified {
		attributes = append(attributes, linkTypeKey.String(link.Type.String()))
	}
	return oteltrace.Link{
		SpanContext: ConvertLink(link),
		Attributes:  attributes,
	}
}

// convertSpanContext keeps the sampled flag, unlike ConvertLink, because
// span contexts of real spans do carry it.
func convertSpanContext(sc octrace.SpanContext, remote bool) oteltrace.SpanContext {
	var flags oteltrace.TraceFlags
	if sc.TraceOptions.IsSampled() {
		flags = oteltrace.FlagsSampled
	}
	state, err := oteltrace.ParseTraceState(sc.Tracestate)
	if err != nil {
		state = emptyTraceState
	}
	return oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    oteltrace.TraceID(sc.TraceID),
		SpanID:     oteltrace.SpanID(sc.SpanID),
		TraceFlags: flags,
		TraceState: state,
		Remote:     remote,
	})
}

func fromOTELSpanContext(sc oteltrace.SpanContext) octrace.SpanContext {
	var options octrace.TraceOptions
	if sc.IsSampled() {
		options = octrace.Sampled
	}
	return octrace.SpanContext{
		TraceID:      octrace.TraceID(sc.TraceID()),
		SpanID:       octrace.SpanID(sc.SpanID()),
		TraceOptions: options,
		Tracestate:   sc.TraceState().String(),
	}
}

func convertSpanKind(kind octrace.SpanKind) oteltrace.SpanKind {
	switch kind {
	case octrace.SpanKindServer:
		return oteltrace.SpanKindServer
	case octrace.SpanKindClient:
		return oteltrace.SpanKindClient
	default:
		return oteltrace.SpanKindInternal
	}
}

func convertStatus(status octrace.Status) (codes.Code, string) {
	if status.IsOK() {
		return codes.Unset, ""
	}
	return codes.Error, status.Message
}

func nanosToTime(nanos int64) time.Time {
	return time.Unix(0, nanos)
}

// timedEvent is an annotation or message event after conversion.
type timedEvent struct {
	name       string
	attributes []attribute.KeyValue
	unixNano   int64
}

// mergeEvents converts annotations and message events into one stream in
// chronological order. Events with equal timestamps keep their recording
// order, annotations first.
func mergeEvents(annotations []octrace.TimedAnnotation, messageEvents []octrace.TimedMessageEvent) []timedEvent {
	merged := make([]timedEvent, 0, len(annotations)+len(messageEvents))
	var i, j int
	for i < len(annotations) || j < len(messageEvents) {
		if j >= len(messageEvents) ||
			(i < len(annotations) && !messageEvents[j].Time.Before(annotations[i].Time)) {
			name, attributes, ts := ConvertAnnotation(annotations[i])
			merged = append(merged, timedEvent{name: name, attributes: attributes, unixNano: ts})
			i++
			continue
		}
		name, attributes, ts := ConvertMessageEvent(messageEvents[j])
		merged = append(merged, timedEvent{name: name, attributes: attributes, unixNano: ts})
		j++
	}
	return merged
}

// startBridgeSpan starts the OTEL mirror of a legacy span at the legacy
// span's own start time.
func startBridgeSpan(ctx context.Context, tracer oteltrace.Tracer, data *octrace.SpanData) oteltrace.Span {
	opts := []oteltrace.SpanStartOption{
		oteltrace.WithTimestamp(nanosToTime(data.StartTime.UnixNano())),
		oteltrace.WithSpanKind(convertSpanKind(data.Kind)),
	}
	if attributes := ConvertAttributes(data.Attributes); len(attributes) > 0 {
		opts = append(opts, oteltrace.WithAttributes(attributes...))
	}
	if links := convertLinks(data.Links); len(links) > 0 {
		opts = append(opts, oteltrace.WithLinks(links...))
	}
	_, span := tracer.Start(ctx, data.Name, opts...)
	return span
}
