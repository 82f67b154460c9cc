package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names used across the API.
const (
	TracerIAM  = "tiendaapi/services/iam"
	TracerGate = "tiendaapi/middleware/authn"
)

// StartSpan starts a span on the named tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Login",
//	    attribute.String(telemetry.AttrPrincipalEmail, email),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Span attribute keys
const (
	AttrPrincipalID    = "principal.id"
	AttrPrincipalEmail = "principal.email"
	AttrCredentialID   = "credential.id"
	AttrCredentialKind = "credential.kind"
	AttrRevokedCount   = "credential.revoked_count"
	AttrGateOutcome    = "gate.outcome"
	AttrGateReason     = "gate.reason"
)
