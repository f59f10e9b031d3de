package tracing

import (
	"context"

	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "groupguard"

// tracer returns the package tracer. This must be a function (not a package-level var)
// because the global TracerProvider isn't set until Init() runs.
func tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}

// Init creates and registers a tracer provider with an OTLP HTTP exporter sending to
// endpoint (default: localhost:4318).
// Returns the provider so the caller can defer Shutdown.
func Init(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	// Bridge OTel's internal logger to zerolog
	otel.SetLogger(zerologr.New(&log.Logger))

	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

// CommandSpan starts a span for a chat command with standard attributes.
func CommandSpan(ctx context.Context, command, groupID, senderID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "command."+command,
		trace.WithAttributes(
			attribute.String("command.name", command),
			attribute.String("chat.group_id", groupID),
			attribute.String("chat.sender_id", senderID),
		),
	)
}

// PlatformSpan starts a span for a messaging platform API call.
func PlatformSpan(ctx context.Context, op, groupID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "platform."+op,
		trace.WithAttributes(
			attribute.String("platform.op", op),
			attribute.String("chat.group_id", groupID),
		),
	)
}

// EndWithError records an error on a span and sets its status.
// If err is nil, this is a no-op.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
