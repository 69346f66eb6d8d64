// Package tracing configures the OpenTelemetry tracer provider used for
// allocation cycle spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kilianp07/thrustmapper/config"
	"github.com/kilianp07/thrustmapper/infra/logger"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// InitTracing installs the global tracer provider. A disabled configuration
// installs a no-op provider.
func InitTracing(ctx context.Context, cfg config.TracingConfig, log logger.Logger) (ShutdownFunc, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg.SetDefaults()
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debugf("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w, closeWriter, err := writerFor(cfg)
	if err != nil {
		return nil, err
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		_ = closeWriter()
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "thrustmapper"),
	))
	if err != nil {
		_ = closeWriter()
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Infof("tracing enabled exporter=%s ratio=%.2f", cfg.Exporter, cfg.SampleRatio)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := closeWriter(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

func writerFor(cfg config.TracingConfig) (io.Writer, func() error, error) {
	if cfg.Exporter != "file" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, f.Close, nil
}

// ShutdownWithTimeout invokes shutdown with a bounded timeout and logs any
// error.
func ShutdownWithTimeout(ctx context.Context, shutdown ShutdownFunc, log logger.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil && log != nil {
		log.Warnf("tracing shutdown failed: %v", err)
	}
}
