package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrEventName   = attribute.Key("event.name")
	AttrRequestID   = attribute.Key("request.id")
	AttrSchemaID    = attribute.Key("schema.id")
	AttrBranchID    = attribute.Key("schema.branch_id")
	AttrEntries     = attribute.Key("spec.entries")
	AttrSpecFound   = attribute.Key("spec.found")
	AttrFailedProps = attribute.Key("validation.failed_properties")
)

// tracer uses the global OTel tracer provider. Tests swap it.
var tracer = otel.Tracer("inspector")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartFetchSpan starts a client span around one event spec fetch.
	StartFetchSpan(ctx context.Context, eventName, requestID string) (context.Context, trace.Span)

	// StartValidateSpan starts a span around one event validation against
	// the schema identified by schemaID and branchID.
	StartValidateSpan(ctx context.Context, schemaID, branchID string, entries int) (context.Context, trace.Span)

	// EndSpanWithError records attrs and err on span and ends it.
	EndSpanWithError(span trace.Span, err error, attrs ...attribute.KeyValue)

	// AddSpanEvent adds an event to the span in ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager backed by the global OTel tracer
// provider. Install the provider with otel.SetTracerProvider first.
func NewSpanManager() SpanManager {
	return otelSpanManager{}
}

func (otelSpanManager) StartFetchSpan(ctx context.Context, eventName, requestID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "inspector.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrEventName.String(eventName), AttrRequestID.String(requestID)),
	)
}

func (otelSpanManager) StartValidateSpan(ctx context.Context, schemaID, branchID string, entries int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "inspector.validate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrSchemaID.String(schemaID),
			AttrBranchID.String(branchID),
			AttrEntries.Int(entries),
		),
	)
}

func (otelSpanManager) EndSpanWithError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}
