package ocotel

import (
	"context"

	"github.com/xoplog/ocbridge/ambient"
	"github.com/xoplog/ocbridge/octrace"

	"github.com/pkg/errors"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Bridge is a legacy Tracer whose spans are mirrored into OTEL, together
// with the pieces it is built from.
//
// Storage holds a single current context. WithSpan on Tracer changes it
// for every user of this Bridge, so goroutines or requests that run
// concurrently should each work on their own Fork.
type Bridge struct {
	Tracer   *octrace.Tracer
	Cache    *SpanCache
	Handler  octrace.StartEndHandler
	Contexts octrace.ContextManager
	Storage  *ambient.Storage
	config   Config
}

// New wires a SpanCache, StartEndHandler, and ContextManager around
// tracerProvider and returns a legacy Tracer that uses them. Legacy spans
// are not exported on their own; only their OTEL mirrors are.
//
// storage is the ambient context shared with OTEL-native code. If it is
// nil, a new one rooted at context.Background() is used.
func New(tracerProvider oteltrace.TracerProvider, storage *ambient.Storage, mods ...ConfigModifier) (*Bridge, error) {
	if tracerProvider == nil {
		return nil, errors.New("tracer provider is required")
	}
	config := DefaultConfig()
	WithConfigChanges(mods...)(&config)
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "ocotel config")
	}
	if storage == nil {
		storage = ambient.New(nil, ambient.WithLogger(config.Logger))
	}
	cache := newSpanCache(tracerProvider.Tracer(config.InstrumentationName), config)
	b := &Bridge{
		Cache:   cache,
		Handler: NewStartEndHandler(cache),
		config:  config,
	}
	b.attach(storage)
	return b, nil
}

// Fork returns a Bridge that shares the cache and StartEndHandler of b
// but has its own ambient storage rooted at ctx. Spans made current
// through the fork's Tracer are not seen by b or by other forks, while
// mirrors still nest across them by span identity.
func (b *Bridge) Fork(ctx context.Context) *Bridge {
	fork := &Bridge{
		Cache:   b.Cache,
		Handler: b.Handler,
		config:  b.config,
	}
	fork.attach(ambient.New(ctx, ambient.WithLogger(b.config.Logger)))
	return fork
}

func (b *Bridge) attach(storage *ambient.Storage) {
	b.Storage = storage
	b.Contexts = NewContextManager(b.Cache, storage)
	b.Tracer = octrace.NewTracer(
		octrace.WithClock(b.config.Clock),
		octrace.WithStartEndHandler(b.Handler),
		octrace.WithContextManager(b.Contexts),
	)
}

func (b *Bridge) Config() Config { return b.config }
