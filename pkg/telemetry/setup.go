package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTelemetry configures OpenTelemetry for the service from cfg and
// installs the resulting provider as the global tracer provider. The caller
// is responsible for shutting down the returned provider on exit.
func SetupTelemetry(ctx context.Context, cfg Config) (*tracesdk.TracerProvider, error) {
	res, err := NewResource(cfg)
	if err != nil {
		return nil, err
	}

	exp, err := NewExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := NewTracerProvider(exp, res)

	otel.SetTracerProvider(tp)
	tracer = otel.Tracer(packageName(cfg))

	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

// NewTracerProvider assembles a trace provider that samples everything and
// batches spans to exp, tagged with res.
func NewTracerProvider(exp tracesdk.SpanExporter, res *resource.Resource) *tracesdk.TracerProvider {
	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
	)
}

// NewExporter picks an OTLP/HTTP exporter when cfg.OTLP.Host is set (OTLP
// has precedence, per Config's doc comment), falling back to a Jaeger
// collector exporter at cfg.JaegerURL otherwise.
func NewExporter(ctx context.Context, cfg Config) (tracesdk.SpanExporter, error) {
	if cfg.OTLP.Host != "" {
		return NewOTLPExporter(ctx, cfg.OTLP)
	}

	return NewJaegerExporter(cfg.JaegerURL)
}

// NewOTLPExporter creates an OTLP/HTTP trace exporter pointed at cfg.Host.
func NewOTLPExporter(ctx context.Context, cfg OTLP) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Host)}
	if !cfg.Secure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	return otlptracehttp.New(ctx, opts...)
}

// NewJaegerExporter creates a Jaeger collector exporter at url.
func NewJaegerExporter(url string) (*jaeger.Exporter, error) {
	return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
}

// NewResource identifies this service instance, using cfg.Package/cfg.ID
// when set and generating a random instance ID otherwise.
func NewResource(cfg Config) (*resource.Resource, error) {
	id := cfg.ID

	if id == "" {
		generated, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}

		id = generated.String()
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(packageName(cfg)),
		attribute.String("ID", id),
	), nil
}

func packageName(cfg Config) string {
	if cfg.Package != "" {
		return cfg.Package
	}

	return PACKAGE
}
