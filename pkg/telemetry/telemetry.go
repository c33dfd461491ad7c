// Package telemetry sets up tracing (Jaeger) and metrics (Prometheus) for
// the planner binaries. Until Init runs, spans and counters go to the otel
// no-op providers, so packages can instrument unconditionally.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/postcadence/planner/pkg/config"
	"github.com/postcadence/planner/pkg/logging"
)

// Version is stamped at build time with -ldflags "-X ...telemetry.Version=".
var Version = "dev"

const shutdownTimeout = 5 * time.Second

var tracer trace.Tracer

type shutdownFunc func(context.Context) error

// Init installs the tracer and meter providers described by cfg and
// returns a function that flushes them.
func Init(cfg *config.TelemetryConfig) (func(), error) {
	logger := logging.WithComponent("telemetry")
	if !cfg.Enabled {
		logger.Info("Telemetry disabled")
		return func() {}, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	var shutdowns []shutdownFunc
	if cfg.JaegerURL != "" {
		tp, err := newTracerProvider(cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
		logger.Info("Tracing to Jaeger",
			zap.String("url", cfg.JaegerURL),
			zap.Float64("sample_ratio", cfg.SampleRatio))
	}

	// Registers on the default Prometheus registry, which the API server
	// serves on /metrics.
	if cfg.PrometheusEnabled {
		mp, err := newMeterProvider(res)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
		logger.Info("Prometheus metrics enabled")
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = otel.Tracer(cfg.ServiceName)
	initInstruments(cfg.ServiceName)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		if err := errors.Join(errs...); err != nil {
			logger.Error("Error flushing telemetry", zap.Error(err))
		}
	}, nil
}

func newResource(cfg *config.TelemetryConfig) (*resource.Resource, error) {
	res, err := resource.New(context.Background(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceNamespace("postcadence"),
			semconv.ServiceVersion(Version),
			semconv.DeploymentEnvironment(cfg.Environment),
			attribute.String("planner.component", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(cfg *config.TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newMeterProvider(res *resource.Resource) (*metric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	return metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	), nil
}

// Tracer returns the planner tracer, or a no-op one before Init.
func Tracer() trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer("planner")
	}
	return tracer
}

// StartSpan starts a span on the planner tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}
