package history

import (
	"errors"
)

// ErrNilDependency is returned by NewQueryHandler when a required collaborator is nil.
var ErrNilDependency = errors.New("query handler dependency must not be nil")

// Option defines a functional option for configuring QueryHandler.
type Option func(*QueryHandler) error

// WithLogging sets the basic logger.
func WithLogging(logger Logger) Option {
	return func(h *QueryHandler) error {
		h.observer.logger = logger
		return nil
	}
}

// WithContextualLogging sets the context-aware logger.
func WithContextualLogging(logger ContextualLogger) Option {
	return func(h *QueryHandler) error {
		h.observer.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector. It is used with context when it implements changelog.ContextualMetricsCollector.
func WithMetrics(collector MetricsCollector) Option {
	return func(h *QueryHandler) error {
		h.observer.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector.
func WithTracing(collector TracingCollector) Option {
	return func(h *QueryHandler) error {
		h.observer.tracingCollector = collector
		return nil
	}
}

// WithPresentationMapper replaces the mapper built from DefaultTimeZone and DefaultTimestampLayout.
func WithPresentationMapper(mapper PresentationMapper) Option {
	return func(h *QueryHandler) error {
		h.mapper = mapper
		return nil
	}
}

// WithStrongReads keeps reads on the primary database instead of allowing a replica.
func WithStrongReads() Option {
	return func(h *QueryHandler) error {
		h.strongReads = true
		return nil
	}
}
