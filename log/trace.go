package log

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/scriptrack/scriptrack"

var tracerProvider *sdktrace.TracerProvider

// InitTracing exports spans for each run phase to w. Without it, spans are
// no-ops.
func InitTracing(w io.Writer) error {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return err
	}
	tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tracerProvider)
	return nil
}

// ShutdownTracing flushes any exported spans.
func ShutdownTracing(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	err := tracerProvider.Shutdown(ctx)
	tracerProvider = nil
	return err
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// EndSpan records err (if any) on the span, logs it, and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("phase failed", zap.Error(err))
	}
	span.End()
}
