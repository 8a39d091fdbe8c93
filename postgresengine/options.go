package postgresengine

import (
	"context"
	"time"
)

// Logger interface for SQL query logging, operational messages, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting Backend performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information from Backend operations.
// This interface follows the same dependency-free pattern as MetricsCollector, allowing users to integrate
// with any tracing backend (OpenTelemetry, Jaeger, Zipkin, etc.) by implementing this interface.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Option defines a functional option for configuring a Backend.
type Option func(*Backend) error

// WithLogger sets the logger for the Backend.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Row counts and durations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(b *Backend) error {
		b.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Backend.
// The metrics collector will receive performance and operational metrics including
// query and exec durations and database error counts.
func WithMetrics(collector MetricsCollector) Option {
	return func(b *Backend) error {
		b.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Backend.
// The tracing collector will receive distributed tracing information including
// span creation for query and exec operations, context propagation, and error tracking.
func WithTracing(collector TracingCollector) Option {
	return func(b *Backend) error {
		b.tracingCollector = collector
		return nil
	}
}

// WithServerVersion pins the server version instead of detecting it on first use.
// Useful for tests and for servers where SELECT version() is not available.
func WithServerVersion(version ServerVersion) Option {
	return func(b *Backend) error {
		b.serverVersion = &version
		return nil
	}
}

// WithValueAdapter registers an additional value adapter. It takes precedence
// over the built-in adapters for the data types it declares.
func WithValueAdapter(adapter ValueAdapter) Option {
	return func(b *Backend) error {
		b.registry.Register(adapter)
		return nil
	}
}
