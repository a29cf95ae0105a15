package ocotel

import (
	"context"
	"sync"

	"github.com/xoplog/ocbridge/octrace"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// spanKey identifies a span on either side. Legacy and OTEL spans are
// kept in separate maps so equal keys never collide.
type spanKey struct {
	traceID [16]byte
	spanID  [8]byte
}

func legacyKey(sc octrace.SpanContext) spanKey {
	return spanKey{traceID: sc.TraceID, spanID: sc.SpanID}
}

func bridgeKey(sc oteltrace.SpanContext) spanKey {
	return spanKey{traceID: sc.TraceID(), spanID: sc.SpanID()}
}

// pair is one live legacy span and its mirror. bridge and startLinks are
// written once, inside once, while holding SpanCache.lock.
type pair struct {
	once       sync.Once
	legacy     *octrace.RecordingSpan
	bridge     oteltrace.Span
	startLinks int
}

// placeholder is a legacy view of a span that was started through OTEL.
type placeholder struct {
	legacy *octrace.UnbackedSpan
	bridge oteltrace.Span
}

// SpanCache associates live legacy spans with their OTEL mirrors in both
// directions. It is safe for concurrent use.
//
// A pair is created the first time either ToBridge or the StartEndHandler
// sees a legacy span and is removed, in both directions at once, when the
// span ends. Legacy views of spans that were created through OTEL directly
// are never seen by the handler, so they are kept in a separate cache that
// is bounded by size and idle time. That cache runs a cleanup goroutine
// which is never stopped, so create one SpanCache per process rather than
// one per request (Bridge.Fork shares it).
type SpanCache struct {
	tracer oteltrace.Tracer
	log    zerolog.Logger

	lock         sync.Mutex
	byLegacy     map[spanKey]*pair
	byBridge     map[spanKey]*pair
	placeholders *expirable.LRU[spanKey, placeholder]
}

// NewSpanCache creates a cache that starts mirrored spans with tracer.
func NewSpanCache(tracer oteltrace.Tracer, mods ...ConfigModifier) (*SpanCache, error) {
	config := DefaultConfig()
	WithConfigChanges(mods...)(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newSpanCache(tracer, config), nil
}

func newSpanCache(tracer oteltrace.Tracer, config Config) *SpanCache {
	return &SpanCache{
		tracer:       tracer,
		log:          config.Logger,
		byLegacy:     make(map[spanKey]*pair),
		byBridge:     make(map[spanKey]*pair),
		placeholders: expirable.NewLRU[spanKey, placeholder](config.PlaceholderCapacity, nil, config.PlaceholderTTL),
	}
}

// ToBridge returns the OTEL span that mirrors span, creating it if it
// does not exist yet. Concurrent callers for the same span all get the
// same OTEL span. A nil span returns nil.
//
// Spans that are not *octrace.RecordingSpan have no record to mirror.
// For those, and for recording spans that have already ended and left
// the cache, the result is a non-recording OTEL span with the same
// identifiers (or the OTEL span a placeholder was made from).
func (c *SpanCache) ToBridge(span octrace.Span) oteltrace.Span {
	if isNil(span) {
		return nil
	}
	recording, ok := span.(*octrace.RecordingSpan)
	if !ok {
		return c.unbackedToBridge(span.SpanContext())
	}
	p, key := c.pairFor(recording, false)
	if p == nil {
		c.log.Debug().Str("span", recording.Name()).Msg("ended span is no longer mirrored")
		return nonRecording(recording.SpanContext())
	}
	return c.materialize(p, key)
}

// pairFor returns the cached pair for span, adding one if there is none.
// Unless ending is set, an ended span that is not cached gets no pair.
func (c *SpanCache) pairFor(span *octrace.RecordingSpan, ending bool) (*pair, spanKey) {
	key := legacyKey(span.SpanContext())
	c.lock.Lock()
	defer c.lock.Unlock()
	p, ok := c.byLegacy[key]
	if !ok {
		if !ending && span.IsEnded() {
			return nil, key
		}
		p = &pair{legacy: span}
		c.byLegacy[key] = p
	}
	return p, key
}

// mirrorForEnd returns the mirror of an ending span and the number of its
// links that the mirror was started with.
func (c *SpanCache) mirrorForEnd(span *octrace.RecordingSpan) (oteltrace.Span, int) {
	p, key := c.pairFor(span, true)
	bridge := c.materialize(p, key)
	c.lock.Lock()
	defer c.lock.Unlock()
	return bridge, p.startLinks
}

// materialize starts the mirror span for p exactly once. If p was removed
// before the mirror could be cached, the mirror is ended right away and a
// non-recording span takes its place.
func (c *SpanCache) materialize(p *pair, key spanKey) oteltrace.Span {
	p.once.Do(func() {
		c.lock.Lock()
		if c.byLegacy[key] != p {
			p.bridge = nonRecording(p.legacy.SpanContext())
			c.lock.Unlock()
			return
		}
		c.lock.Unlock()

		data := p.legacy.ToSpanData()
		bridge := startBridgeSpan(c.parentContext(data), c.tracer, data)

		c.lock.Lock()
		live := c.byLegacy[key] == p
		if live {
			p.bridge = bridge
			p.startLinks = len(data.Links)
			if sc := bridge.SpanContext(); sc.IsValid() {
				c.byBridge[bridgeKey(sc)] = p
			}
		} else {
			p.bridge = nonRecording(p.legacy.SpanContext())
		}
		c.lock.Unlock()
		if !live {
			bridge.End()
			c.log.Debug().Str("span", p.legacy.Name()).Msg("span removed while its mirror was starting")
		}
	})
	return p.bridge
}

// parentContext finds what the mirror of a span should be parented on:
// the mirror of a live legacy parent, the OTEL span behind a placeholder
// parent, or else the parent's identifiers.
func (c *SpanCache) parentContext(data *octrace.SpanData) context.Context {
	ctx := withLegacyIDs(context.Background(), data.SpanContext)
	parent := data.ParentSpanContext()
	if !parent.IsValid() {
		return ctx
	}
	key := legacyKey(parent)
	if !data.HasRemoteParent {
		c.lock.Lock()
		p, ok := c.byLegacy[key]
		var ph placeholder
		var phOK bool
		if !ok {
			ph, phOK = c.placeholders.Get(key)
		}
		c.lock.Unlock()
		switch {
		case ok:
			if bridge := c.materialize(p, key); bridge != nil {
				return oteltrace.ContextWithSpan(ctx, bridge)
			}
		case phOK:
			return oteltrace.ContextWithSpan(ctx, ph.bridge)
		}
	}
	return oteltrace.ContextWithSpanContext(ctx, convertSpanContext(parent, data.HasRemoteParent))
}

func (c *SpanCache) unbackedToBridge(sc octrace.SpanContext) oteltrace.Span {
	if !sc.IsValid() {
		return nil
	}
	key := legacyKey(sc)
	c.lock.Lock()
	ph, ok := c.placeholders.Get(key)
	c.lock.Unlock()
	if ok {
		return ph.bridge
	}
	return nonRecording(sc)
}

// ToLegacy returns the legacy span that span mirrors. If there is none,
// it returns an *octrace.UnbackedSpan carrying span's identifiers, the
// same one for repeated calls while it stays cached. A nil span, or one
// with an invalid span context, returns nil.
func (c *SpanCache) ToLegacy(span oteltrace.Span) octrace.Span {
	if span == nil {
		return nil
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return nil
	}
	key := bridgeKey(sc)
	c.lock.Lock()
	defer c.lock.Unlock()
	if p, ok := c.byBridge[key]; ok {
		return p.legacy
	}
	ph, ok := c.placeholders.Get(key)
	if !ok {
		ph = placeholder{
			legacy: octrace.NewUnbackedSpan(fromOTELSpanContext(sc)),
			bridge: span,
		}
	}
	// Adding again restarts the idle timer.
	c.placeholders.Add(key, ph)
	return ph.legacy
}

// Remove forgets span in both directions. It does nothing if span is not
// cached.
func (c *SpanCache) Remove(span octrace.Span) {
	if isNil(span) {
		return
	}
	key := legacyKey(span.SpanContext())
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := span.(*octrace.RecordingSpan); !ok {
		c.placeholders.Remove(key)
		return
	}
	p, ok := c.byLegacy[key]
	if !ok {
		return
	}
	delete(c.byLegacy, key)
	if p.bridge == nil {
		return
	}
	bk := bridgeKey(p.bridge.SpanContext())
	if c.byBridge[bk] == p {
		delete(c.byBridge, bk)
	}
}

// Len is the number of live legacy spans that are mirrored.
func (c *SpanCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.byLegacy)
}

// Placeholders is the number of cached legacy views of OTEL spans.
func (c *SpanCache) Placeholders() int {
	return c.placeholders.Len()
}

func isNil(span octrace.Span) bool {
	switch s := span.(type) {
	case nil:
		return true
	case *octrace.RecordingSpan:
		return s == nil
	case *octrace.UnbackedSpan:
		return s == nil
	default:
		return false
	}
}

func nonRecording(sc octrace.SpanContext) oteltrace.Span {
	return oteltrace.SpanFromContext(
		oteltrace.ContextWithSpanContext(context.Background(), convertSpanContext(sc, false)))
}
