package octrace

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// TraceID is the binary form of a 16 byte trace identifier.
type TraceID [16]byte

// SpanID is the binary form of an 8 byte span identifier.
type SpanID [8]byte

var (
	zeroTraceID TraceID
	zeroSpanID  SpanID
)

func (t TraceID) IsValid() bool  { return t != zeroTraceID }
func (t TraceID) Bytes() []byte  { return t[:] }
func (t TraceID) String() string { return hex.EncodeToString(t[:]) }
func (s SpanID) IsValid() bool   { return s != zeroSpanID }
func (s SpanID) Bytes() []byte   { return s[:] }
func (s SpanID) String() string  { return hex.EncodeToString(s[:]) }

// TraceIDFromHex parses a lower or upper case hex string of exactly
// 32 characters.
func TraceIDFromHex(h string) (TraceID, error) {
	var t TraceID
	if err := decodeHex(t[:], h); err != nil {
		return t, errors.Wrap(err, "trace id")
	}
	return t, nil
}

// SpanIDFromHex parses a lower or upper case hex string of exactly
// 16 characters.
func SpanIDFromHex(h string) (SpanID, error) {
	var s SpanID
	if err := decodeHex(s[:], h); err != nil {
		return s, errors.Wrap(err, "span id")
	}
	return s, nil
}

func decodeHex(dst []byte, h string) error {
	if len(h) != len(dst)*2 {
		return errors.Errorf("expected %d hex characters, got %d", len(dst)*2, len(h))
	}
	_, err := hex.Decode(dst, []byte(h))
	return err
}

// TraceOptions carries the trace flags. Only the sampled bit is defined.
type TraceOptions byte

const Sampled TraceOptions = 1

func (o TraceOptions) IsSampled() bool { return o&Sampled != 0 }

// SpanContext is the propagated part of a span.
type SpanContext struct {
	TraceID      TraceID
	SpanID       SpanID
	TraceOptions TraceOptions
	Tracestate   string
}

func (sc SpanContext) IsValid() bool { return sc.TraceID.IsValid() && sc.SpanID.IsValid() }

func newTraceID() TraceID {
	var t TraceID
	for !t.IsValid() {
		_, _ = rand.Read(t[:])
	}
	return t
}

func newSpanID() SpanID {
	var s SpanID
	for !s.IsValid() {
		_, _ = rand.Read(s[:])
	}
	return s
}
