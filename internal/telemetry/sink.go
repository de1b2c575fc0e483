package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sink is the fire-and-forget telemetry facade used by the pipeline to
// report exceptions, messages, and phase spans. A nil *Sink is valid and
// does nothing; no Sink method can fail the caller.
type Sink struct {
	tracer trace.Tracer
	logger *slog.Logger
}

func NewSink(name string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		tracer: otel.Tracer(name),
		logger: logger,
	}
}

// CaptureException records an error with tags. Best-effort only.
func (s *Sink) CaptureException(ctx context.Context, err error, tags map[string]string) {
	if s == nil || err == nil {
		return
	}
	attrs := []slog.Attr{slog.String("error", err.Error())}
	for k, v := range tags {
		attrs = append(attrs, slog.String(k, v))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, "captured exception", attrs...)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		for k, v := range tags {
			span.SetAttributes(attribute.String(k, v))
		}
	}
}

// CaptureMessage records a diagnostic message at the given level.
func (s *Sink) CaptureMessage(ctx context.Context, text string, level slog.Level) {
	if s == nil {
		return
	}
	s.logger.Log(ctx, level, text)
}

// StartSpan brackets a major phase for latency visibility. Callers must End
// the returned span.
func (s *Sink) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}
