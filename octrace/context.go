package octrace

import (
	"context"

	"github.com/xoplog/ocbridge/ambient"
)

// Ctx is an ambient context snapshot as seen by the legacy API.
// Attach makes the snapshot current and returns the snapshot that was
// current before. Detach must be called on the attached snapshot with
// the value Attach returned, in strictly nested order.
type Ctx interface {
	Attach() Ctx
	Detach(prior Ctx)
}

// ContextManager is the pluggable capability set that the legacy API
// uses to store the current span.
type ContextManager interface {
	CurrentContext() Ctx
	WithValue(ctx Ctx, span Span) Ctx
	GetValue(ctx Ctx) Span
}

// StartEndHandler is called by the Tracer when a RecordingSpan starts
// and when it ends. OnEnd is called exactly once per span.
type StartEndHandler interface {
	OnStart(span *RecordingSpan)
	OnEnd(span *RecordingSpan)
}

type noopHandler struct{}

func (noopHandler) OnStart(*RecordingSpan) {}
func (noopHandler) OnEnd(*RecordingSpan)   {}

type spanKeyType struct{}

var spanKey = spanKeyType{}

type contextManager struct {
	storage *ambient.Storage
}

type storageCtx struct {
	ctx     context.Context
	storage *ambient.Storage
}

// NewContextManager returns the default ContextManager. It keeps the
// current legacy span as a value in the context.Context snapshots held
// by storage.
func NewContextManager(storage *ambient.Storage) ContextManager {
	return contextManager{storage: storage}
}

func (m contextManager) CurrentContext() Ctx {
	return storageCtx{ctx: m.storage.Current(), storage: m.storage}
}

func (m contextManager) WithValue(ctx Ctx, span Span) Ctx {
	return storageCtx{ctx: context.WithValue(m.unwrap(ctx), spanKey, span), storage: m.storage}
}

func (m contextManager) GetValue(ctx Ctx) Span {
	span, _ := m.unwrap(ctx).Value(spanKey).(Span)
	return span
}

func (m contextManager) unwrap(ctx Ctx) context.Context {
	if sc, ok := ctx.(storageCtx); ok {
		return sc.ctx
	}
	return m.storage.Current()
}

func (c storageCtx) Attach() Ctx {
	return storageCtx{ctx: c.storage.Attach(c.ctx), storage: c.storage}
}

func (c storageCtx) Detach(prior Ctx) {
	p, ok := prior.(storageCtx)
	if !ok {
		p.ctx = context.Background()
	}
	c.storage.Detach(c.ctx, p.ctx)
}

// Scope undoes a WithSpan when closed.
type Scope struct {
	attached Ctx
	prior    Ctx
}

func (s Scope) Close() {
	if s.attached == nil {
		return
	}
	s.attached.Detach(s.prior)
}
