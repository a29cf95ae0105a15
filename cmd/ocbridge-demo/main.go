// Command ocbridge-demo runs a small legacy-instrumented workload and
// exports the mirrored spans through OTEL.
//
// Configuration comes from the YAML file named by OCBRIDGE_CONFIG (if
// set) and then from OCBRIDGE_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xoplog/ocbridge/ambient"
	"github.com/xoplog/ocbridge/ocotel"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(context.Background(), os.Getenv("OCBRIDGE_CONFIG"), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ocbridge-demo: %+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, stdout io.Writer) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := config.logger()

	exporter, err := newExporter(ctx, config, stdout)
	if err != nil {
		return err
	}
	tracerProvider, err := newTracerProvider(ctx, config, exporter)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tracerProvider)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("tracer provider shutdown")
		}
	}()

	bridge, err := ocotel.New(tracerProvider,
		ambient.New(ctx, ambient.WithLogger(log)),
		ocotel.WithLogger(log),
		ocotel.WithPlaceholderLimits(config.PlaceholderCapacity, config.PlaceholderTTL),
	)
	if err != nil {
		return errors.Wrap(err, "install bridge")
	}
	log.Info().Str("exporter", config.Exporter).Msg("bridge installed")

	runWorkload(ctx, bridge, tracerProvider.Tracer(config.ServiceName), config.Requests, log)

	if n := bridge.Cache.Len(); n != 0 {
		log.Warn().Int("spans", n).Msg("legacy spans still open at exit")
	}
	return nil
}
