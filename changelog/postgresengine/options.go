package postgresengine

import (
	"github.com/coursehistory/coursehistory-go/changelog"
)

type (
	Logger           = changelog.Logger
	ContextualLogger = changelog.ContextualLogger
	MetricsCollector = changelog.MetricsCollector
	SpanContext      = changelog.SpanContext
	TracingCollector = changelog.TracingCollector
)

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithTableName sets the change log table name for the Store.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return changelog.ErrEmptyTableNameSupplied
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Record counts, durations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// It receives the same messages as the Logger, together with the context, so trace/span ids can be correlated.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// Every read opens a span carrying the operation, the consistency level and the record count.
func WithTracing(collector TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}
