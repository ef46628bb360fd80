package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/coursehistory/coursehistory-go/changelog"
)

const (
	metricQueryDuration     = "changelog_query_duration_seconds"
	metricRecordsQueried    = "changelog_records_queried_total"
	metricDatabaseErrors    = "changelog_database_errors_total"
	spanNameQuery           = "changelog.query"
	spanNameQuerySnapshots  = "changelog.query_snapshots"
	spanAttrOperation       = "operation"
	spanAttrRecordCount     = "record_count"
	spanAttrDurationMS      = "duration_ms"
	spanAttrErrorType       = "error_type"
	spanAttrConsistency     = "consistency"
	labelStatus             = "status"
	statusSuccess           = "success"
	statusError             = "error"
	operationQuery          = "query"
	operationQuerySnapshots = "query_snapshots"
	errorTypeBuildQuery     = "build_query"
	errorTypeDatabaseQuery  = "database_query"
	errorTypeRowScan        = "row_scan"
)

// logQueryWithDuration logs SQL queries with execution time at debug level.
func (s Store) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (s Store) logOperation(ctx context.Context, action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

func (s Store) logWarn(ctx context.Context, message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at the error level.
func (s Store) logError(
	ctx context.Context,
	message string,
	err error,
	args ...any,
) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordErrorMetrics records error metrics with context if the collector supports it.
func (s Store) recordErrorMetrics(ctx context.Context, operation, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := s.metricsCollector.(changelog.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
}

// recordQueryMetrics records the duration and the record count of a successful read.
func (s Store) recordQueryMetrics(ctx context.Context, operation string, recordCount int, duration time.Duration) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       statusSuccess,
	}

	if contextualCollector, ok := s.metricsCollector.(changelog.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricQueryDuration, duration, labels)
		contextualCollector.RecordValueContext(ctx, metricRecordsQueried, float64(recordCount), labels)
		return
	}

	s.metricsCollector.RecordDuration(metricQueryDuration, duration, labels)
	s.metricsCollector.RecordValue(metricRecordsQueried, float64(recordCount), labels)
}

// startQuerySpan starts a tracing span for read operations if the tracing collector is configured.
func (s Store) startQuerySpan(ctx context.Context, operation string) (context.Context, SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	spanName := spanNameQuery
	if operation == operationQuerySnapshots {
		spanName = spanNameQuerySnapshots
	}

	return s.tracingCollector.StartSpan(ctx, spanName, map[string]string{
		spanAttrOperation:   operation,
		spanAttrConsistency: changelog.GetConsistencyLevel(ctx).String(),
	})
}

// finishQuerySpanSuccess finishes a successful read span with results.
func (s Store) finishQuerySpanSuccess(span SpanContext, recordCount int, duration time.Duration) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(statusSuccess)
	span.AddAttribute(spanAttrRecordCount, fmt.Sprintf("%d", recordCount))
	span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

	s.tracingCollector.FinishSpan(span, statusSuccess, map[string]string{
		spanAttrRecordCount: fmt.Sprintf("%d", recordCount),
	})
}

// finishQuerySpanError finishes a read span with error details.
func (s Store) finishQuerySpanError(span SpanContext, errorType string, duration time.Duration) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(statusError)
	span.AddAttribute(spanAttrErrorType, errorType)

	if duration > 0 {
		span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))
	}

	s.tracingCollector.FinishSpan(span, statusError, map[string]string{spanAttrErrorType: errorType})
}
