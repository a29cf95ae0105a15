/*
Package ocotel mirrors spans from the legacy octrace API into
OpenTelemetry so that code instrumented with octrace can be exported
through OTEL exporters without changing the instrumentation.

There are four parts.

# Converter

ConvertAttribute, ConvertAnnotation, ConvertMessageEvent, and ConvertLink
are pure functions that translate legacy values into OTEL values.
Attribute kinds that OTEL cannot represent are dropped. Timestamps are
combined as seconds*1e9+nanos using integer arithmetic.

# SpanCache

SpanCache maps each live legacy span to its OTEL mirror and back.
ToBridge creates the mirror on first use; concurrent first use of the
same span creates one mirror. ToLegacy returns the legacy span behind a
mirror or, for spans created through OTEL directly, an unbacked legacy
view whose mutators do nothing. Remove drops both directions together.

# StartEndHandler

NewStartEndHandler returns the hook the legacy Tracer calls when a span
starts and ends. The mirror is started at the legacy start time. On end
the recorded annotations and message events are replayed in
chronological order with their own timestamps, the mirror is ended at the
legacy end time, and the pair is removed from the cache.

# ContextManager

NewContextManager stores the current legacy span, converted to OTEL, in
an ambient.Storage of OTEL contexts. OTEL code that starts spans from
storage.Current() therefore nests under legacy spans, and the legacy API
sees OTEL spans as the current span.

# Wiring

New builds all of the above around a TracerProvider:

	tracerProvider := sdktrace.NewTracerProvider(
		ocotel.IDGenerator(),
		sdktrace.WithBatcher(exporter),
	)
	bridge, err := ocotel.New(tracerProvider, nil)
	if err != nil {
		return err
	}
	span := bridge.Tracer.StartSpan("work")
	defer span.End()

IDGenerator is optional. With it, mirrors keep the legacy trace and span
ids; without it, OTEL assigns new ones.
*/
package ocotel
