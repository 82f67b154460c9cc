package telemetry

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServerMetrics holds metric instruments for HTTP server telemetry.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter     // Total HTTP requests
	RequestDuration metric.Float64Histogram // HTTP request latency
	ErrorCounter    metric.Int64Counter     // Total HTTP errors (5xx)
}

// NewServerMetrics creates the HTTP instruments on the global meter provider.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("tiendaapi/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records one finished HTTP request.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route string, status int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, strconv.Itoa(status)),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)
	if status >= 500 {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// AuthMetrics holds metric instruments for session operations and the request gate.
type AuthMetrics struct {
	Attempts      metric.Int64Counter // register, login, refresh, logout
	Failures      metric.Int64Counter
	Duration      metric.Float64Histogram
	Revoked       metric.Int64Counter // credentials revoked by rotation or logout
	GateDecisions metric.Int64Counter // authenticated, unauthenticated, rejected
}

// NewAuthMetrics creates the auth instruments on the global meter provider.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("tiendaapi/auth")

	attempts, err := meter.Int64Counter(
		"auth.attempt.count",
		metric.WithDescription("Total number of session operations"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"auth.failure.count",
		metric.WithDescription("Total number of failed session operations"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"auth.duration",
		metric.WithDescription("Session operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	revoked, err := meter.Int64Counter(
		"auth.credential.revoked.count",
		metric.WithDescription("Total number of revoked credentials"),
		metric.WithUnit("{credential}"),
	)
	if err != nil {
		return nil, err
	}

	gate, err := meter.Int64Counter(
		"auth.gate.decision.count",
		metric.WithDescription("Request gate decisions by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		Attempts:      attempts,
		Failures:      failures,
		Duration:      duration,
		Revoked:       revoked,
		GateDecisions: gate,
	}, nil
}

// RecordOperation records a session operation with its result and duration.
// A nil receiver is a no-op so callers need no guard.
func (a *AuthMetrics) RecordOperation(ctx context.Context, operation string, success bool, durationMs float64) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAuthOperation, operation),
		attribute.Bool(AttrAuthSuccess, success),
	)

	a.Attempts.Add(ctx, 1, attrs)
	a.Duration.Record(ctx, durationMs, attrs)
	if !success {
		a.Failures.Add(ctx, 1, attrs)
	}
}

// RecordRevoked counts credentials revoked by an operation.
func (a *AuthMetrics) RecordRevoked(ctx context.Context, operation string, n int) {
	if a == nil || n <= 0 {
		return
	}
	a.Revoked.Add(ctx, int64(n), metric.WithAttributes(attribute.String(AttrAuthOperation, operation)))
}

// RecordGate counts one request gate decision.
func (a *AuthMetrics) RecordGate(ctx context.Context, outcome string) {
	if a == nil {
		return
	}
	a.GateDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGateOutcome, outcome)))
}

// Metric attribute keys
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	AttrAuthOperation = "auth.operation"
	AttrAuthSuccess   = "auth.success"
)
