package main

import (
	"context"
	"sync"

	"github.com/xoplog/ocbridge/ocotel"
	"github.com/xoplog/ocbridge/octrace"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var shards = []string{"users", "orders"}

// runWorkload simulates a service that is instrumented with the legacy
// API and has one component that already uses OTEL directly. Requests
// run concurrently, each on its own fork of the bridge.
func runWorkload(ctx context.Context, bridge *ocotel.Bridge, native oteltrace.Tracer, requests int, log zerolog.Logger) {
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			handleRequest(bridge.Fork(ctx), native, id)
		}(int64(i))
	}
	wg.Wait()
	log.Info().Int("requests", requests).Msg("workload done")
}

func handleRequest(bridge *ocotel.Bridge, native oteltrace.Tracer, id int64) {
	tracer := bridge.Tracer
	root := tracer.StartSpan("handle-request", octrace.WithSpanKind(octrace.SpanKindServer))
	scope := tracer.WithSpan(root)
	defer root.End()
	defer scope.Close()

	root.AddAttributes(
		octrace.String("http.method", "GET"),
		octrace.Int64("request.id", id),
	)

	for n, shard := range shards {
		fetch := tracer.StartSpan("fetch", octrace.WithSpanKind(octrace.SpanKindClient))
		fetch.AddMessageEvent(octrace.MessageEvent{
			Type:             octrace.MessageEventTypeSent,
			ID:               int64(n + 1),
			UncompressedSize: 128,
			CompressedSize:   64,
		})
		fetch.Annotate("cache miss", octrace.String("shard", shard))
		fetch.AddMessageEvent(octrace.MessageEvent{
			Type:             octrace.MessageEventTypeReceived,
			ID:               int64(n + 1),
			UncompressedSize: 4096,
			CompressedSize:   1024,
		})
		fetch.End()
	}

	// OTEL-native code picks up the legacy span from the shared storage.
	_, render := native.Start(bridge.Storage.Current(), "render")
	render.SetAttributes(attribute.Int("shards", len(shards)))
	render.End()

	if id%2 == 1 {
		root.SetStatus(octrace.Status{Code: 14, Message: "upstream unavailable"})
	}
}
