package octrace

import (
	"time"
)

const nanosPerSecond = int64(time.Second)

// Timestamp is a wall-clock time split into whole seconds since the
// Unix epoch and a nanosecond remainder in [0, 1e9).
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// UnixNano combines the two fields with integer arithmetic so that no
// precision is lost for large second counts.
func (ts Timestamp) UnixNano() int64 {
	return ts.Seconds*nanosPerSecond + int64(ts.Nanos)
}

func (ts Timestamp) Time() time.Time { return time.Unix(ts.Seconds, int64(ts.Nanos)) }

func (ts Timestamp) Before(other Timestamp) bool {
	if ts.Seconds != other.Seconds {
		return ts.Seconds < other.Seconds
	}
	return ts.Nanos < other.Nanos
}

// Annotation is a text description with optional attributes.
type Annotation struct {
	Description string
	Attributes  Attributes
}

type TimedAnnotation struct {
	Time Timestamp
	Annotation
}

type MessageEventType int

const (
	MessageEventTypeUnspecified MessageEventType = iota
	MessageEventTypeSent
	MessageEventTypeReceived
)

func (t MessageEventType) String() string {
	switch t {
	case MessageEventTypeSent:
		return "SENT"
	case MessageEventTypeReceived:
		return "RECEIVED"
	default:
		return "TYPE_UNSPECIFIED"
	}
}

// MessageEvent describes a message sent or received on the span.
type MessageEvent struct {
	Type             MessageEventType
	ID               int64
	UncompressedSize int64
	CompressedSize   int64
}

type TimedMessageEvent struct {
	Time Timestamp
	MessageEvent
}

type LinkType int

const (
	LinkTypeUnspecified LinkType = iota
	LinkTypeChild
	LinkTypeParent
)

func (t LinkType) String() string {
	switch t {
	case LinkTypeChild:
		return "CHILD_LINKED_SPAN"
	case LinkTypeParent:
		return "PARENT_LINKED_SPAN"
	default:
		return "TYPE_UNSPECIFIED"
	}
}

// Link points at a span in another trace.
type Link struct {
	TraceID    TraceID
	SpanID     SpanID
	Type       LinkType
	Attributes Attributes
}

type SpanKind int

const (
	SpanKindUnspecified SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// Status codes follow the canonical gRPC codes; zero is OK.
type Status struct {
	Code    int32
	Message string
}

func (s Status) IsOK() bool { return s.Code == 0 }
