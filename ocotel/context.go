package ocotel

import (
	"context"

	"github.com/xoplog/ocbridge/ambient"
	"github.com/xoplog/ocbridge/octrace"

	oteltrace "go.opentelemetry.io/otel/trace"
)

type contextManager struct {
	cache   *SpanCache
	storage *ambient.Storage
}

var _ octrace.ContextManager = contextManager{}

// otelCtx is a legacy Ctx that wraps an OTEL context snapshot.
type otelCtx struct {
	ctx     context.Context
	storage *ambient.Storage
}

var _ octrace.Ctx = otelCtx{}

// NewContextManager returns a legacy ContextManager that stores the
// current span in storage as an OTEL span, so that code using OTEL
// directly with storage.Current() sees legacy spans as parents and the
// legacy API sees OTEL spans as the current span.
func NewContextManager(cache *SpanCache, storage *ambient.Storage) octrace.ContextManager {
	return contextManager{
		cache:   cache,
		storage: storage,
	}
}

func (m contextManager) CurrentContext() octrace.Ctx {
	return m.wrap(m.storage.Current())
}

// WithValue returns a new snapshot; neither ctx nor the ambient context
// is changed.
func (m contextManager) WithValue(ctx octrace.Ctx, span octrace.Span) octrace.Ctx {
	return m.wrap(oteltrace.ContextWithSpan(m.unwrap(ctx), m.cache.ToBridge(span)))
}

func (m contextManager) GetValue(ctx octrace.Ctx) octrace.Span {
	return m.cache.ToLegacy(oteltrace.SpanFromContext(m.unwrap(ctx)))
}

func (m contextManager) wrap(ctx context.Context) octrace.Ctx {
	return otelCtx{ctx: ctx, storage: m.storage}
}

// unwrap accepts only snapshots made by this package. Anything else is
// treated as the current ambient context.
func (m contextManager) unwrap(ctx octrace.Ctx) context.Context {
	if c, ok := ctx.(otelCtx); ok && c.ctx != nil {
		return c.ctx
	}
	return m.storage.Current()
}

func (c otelCtx) Attach() octrace.Ctx {
	return otelCtx{ctx: c.storage.Attach(c.ctx), storage: c.storage}
}

func (c otelCtx) Detach(prior octrace.Ctx) {
	p, ok := prior.(otelCtx)
	if !ok || p.ctx == nil {
		p.ctx = context.Background()
	}
	c.storage.Detach(c.ctx, p.ctx)
}

// Context returns the OTEL context inside a snapshot made by a bridge
// ContextManager. For other values it returns context.Background().
func Context(ctx octrace.Ctx) context.Context {
	if c, ok := ctx.(otelCtx); ok && c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}
