// Package tracing configures OpenTelemetry for the sync pipeline.
// Finished spans are written to the application logger at debug level.
package tracing

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Setup installs the global tracer provider and returns its shutdown function
func Setup(serviceName string, logger *logrus.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSpanProcessor(NewLogProcessor(logger)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// Tracer returns a tracer from the global provider
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// LogProcessor is a span processor that logs finished spans
type LogProcessor struct {
	logger *logrus.Logger
}

// NewLogProcessor creates a span processor writing to logger
func NewLogProcessor(logger *logrus.Logger) *LogProcessor {
	return &LogProcessor{logger: logger}
}

// OnStart is a no-op
func (p *LogProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd logs the span with its attributes
func (p *LogProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if !p.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	fields := logrus.Fields{
		"span":        s.Name(),
		"trace_id":    s.SpanContext().TraceID().String(),
		"duration_ms": s.EndTime().Sub(s.StartTime()).Milliseconds(),
	}
	for _, kv := range s.Attributes() {
		fields[string(kv.Key)] = kv.Value.Emit()
	}
	if s.Status().Code == codes.Error {
		fields["error"] = s.Status().Description
	}

	p.logger.WithFields(fields).Debug("Span finished")
}

// Shutdown is a no-op
func (p *LogProcessor) Shutdown(context.Context) error { return nil }

// ForceFlush is a no-op
func (p *LogProcessor) ForceFlush(context.Context) error { return nil }
