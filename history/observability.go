package history

import (
	"context"
	"errors"
	"time"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// Logger is the basic logger used by this package.
type Logger = changelog.Logger

// ContextualLogger is the context-aware logger used by this package.
type ContextualLogger = changelog.ContextualLogger

// MetricsCollector is the metrics collector used by this package.
type MetricsCollector = changelog.MetricsCollector

// SpanContext is the span handle used by this package.
type SpanContext = changelog.SpanContext

// TracingCollector is the tracing collector used by this package.
type TracingCollector = changelog.TracingCollector

const (
	// RequestDurationMetric tracks the duration of history requests.
	RequestDurationMetric = "history_request_duration_seconds"

	// RequestCallsMetric counts history requests.
	RequestCallsMetric = "history_request_calls_total"

	// RequestCanceledMetric counts history requests aborted by context cancellation.
	RequestCanceledMetric = "history_request_canceled_total"

	// RequestTimeoutMetric counts history requests aborted by a context deadline.
	RequestTimeoutMetric = "history_request_timeout_total"

	// RecordsReturnedMetric records the number of presentation records per request.
	RecordsReturnedMetric = "history_records_returned"

	// SpanNameHandle is the tracing span name of a history request.
	SpanNameHandle = "history.handle"

	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCanceled = "canceled"
	StatusTimeout  = "timeout"
	StatusNotFound = "not_found"

	logMsgRequestStarted    = "history request started"
	logMsgRequestCompleted  = "history request completed"
	logMsgRequestFailed     = "history request failed"
	logMsgMalformedSnapshot = "malformed snapshot skipped"
	logMsgIDsResolved       = "related entity ids resolved"

	logAttrCourseID    = "course_id"
	logAttrRecordID    = "record_id"
	logAttrEntityKind  = "entity_kind"
	logAttrEntityID    = "entity_id"
	logAttrStatus      = "status"
	logAttrDurationMS  = "duration_ms"
	logAttrRecordCount = "record_count"
	logAttrIDCount     = "id_count"
	logAttrError       = "error"

	spanAttrCourseID    = "course_id"
	spanAttrRecordCount = "record_count"
	spanAttrDurationMS  = "duration_ms"
	spanAttrErrorType   = "error_type"

	labelStatus = "status"
)

// observer bundles the optional observability collaborators. All of them may be nil.
type observer struct {
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

func (o observer) info(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (o observer) debug(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (o observer) warn(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (o observer) error(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Error(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

func (o observer) startSpan(ctx context.Context, courseID string) (context.Context, SpanContext) {
	if o.tracingCollector == nil {
		return ctx, nil
	}

	return o.tracingCollector.StartSpan(ctx, SpanNameHandle, map[string]string{spanAttrCourseID: courseID})
}

func (o observer) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if o.tracingCollector == nil || span == nil {
		return
	}

	o.tracingCollector.FinishSpan(span, status, attrs)
}

func (o observer) recordDuration(ctx context.Context, status string, duration time.Duration) {
	if o.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelStatus: status}
	if contextual, ok := o.metricsCollector.(changelog.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, RequestDurationMetric, duration, labels)
		contextual.IncrementCounterContext(ctx, RequestCallsMetric, labels)
		return
	}

	o.metricsCollector.RecordDuration(RequestDurationMetric, duration, labels)
	o.metricsCollector.IncrementCounter(RequestCallsMetric, labels)
}

func (o observer) incrementCounter(ctx context.Context, metric string, status string) {
	if o.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelStatus: status}
	if contextual, ok := o.metricsCollector.(changelog.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.metricsCollector.IncrementCounter(metric, labels)
}

func (o observer) recordValue(ctx context.Context, metric string, value float64) {
	if o.metricsCollector == nil {
		return
	}

	if contextual, ok := o.metricsCollector.(changelog.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, nil)
		return
	}

	o.metricsCollector.RecordValue(metric, value, nil)
}

// statusOf classifies a failed request.
func statusOf(err error) string {
	switch {
	case IsCancellationError(err):
		return StatusCanceled
	case IsTimeoutError(err):
		return StatusTimeout
	case errors.Is(err, ErrCourseNotFound):
		return StatusNotFound
	default:
		return StatusError
	}
}

// IsCancellationError reports whether err stems from context cancellation.
func IsCancellationError(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeoutError reports whether err stems from an exceeded context deadline.
func IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
