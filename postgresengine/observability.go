package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	logMsgBuildStatementFailed = "failed to build sql statement"
	logMsgDBQueryFailed        = "database query execution failed"
	logMsgDBExecFailed         = "database statement execution failed"
	logMsgCloseRowsFailed      = "failed to close database rows"
	logMsgScanRowFailed        = "failed to scan database row"
	logMsgRowsAffectedFailed   = "failed to get rows affected count"
	logMsgVersionDetectFailed  = "failed to detect server version, assuming default"
	logMsgPingFailed           = "connection ping failed, retrying"
	logMsgQueryCompleted       = "query completed"
	logMsgExecCompleted        = "statement completed"
	logMsgTxBegun              = "transaction begun"
	logMsgTxCommitted          = "transaction committed"
	logMsgTxRolledBack         = "transaction rolled back"
	logMsgSavepointCreated     = "savepoint created"
	logMsgSQLExecuted          = "executed sql for: "
	logMsgOperation            = "backend operation: "
	logAttrError               = "error"
	logAttrQuery               = "query"
	logAttrRowCount            = "row_count"
	logAttrRowsAffected        = "rows_affected"
	logAttrDurationMS          = "duration_ms"
	logAttrIsolation           = "isolation"
	logAttrSavepoint           = "savepoint"
	logActionQuery             = "query"
	logActionExec              = "exec"
	logActionBatch             = "batch"
	logActionTransaction       = "transaction"
	metricQueryDuration        = "postgres_backend_query_duration"
	metricExecDuration         = "postgres_backend_exec_duration"
	metricDatabaseErrors       = "postgres_backend_database_errors"
	spanNameQuery              = "postgres_backend.query"
	spanNameExec               = "postgres_backend.exec"
	spanAttrOperation          = "operation"
	spanAttrErrorType          = "error_type"
	spanAttrDurationMS         = "duration_ms"
	spanAttrRowCount           = "row_count"
	spanAttrRowsAffected       = "rows_affected"
	statusSuccess              = "success"
	statusError                = "error"
	errorTypeQueryFailed       = "query_failed"
	errorTypeExecFailed        = "exec_failed"
	errorTypeScanFailed        = "scan_failed"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if the logger is configured.
func (b *Backend) logQueryWithDuration(
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	if b.logger != nil {
		b.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, b.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (b *Backend) logOperation(action string, args ...any) {
	if b.logger != nil {
		b.logger.Info(logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level if the logger is configured.
func (b *Backend) logWarn(message string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (b *Backend) logError(
	message string,
	err error,
	args ...any,
) {
	if b.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		b.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (b *Backend) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordDurationMetrics records operation durations if the metrics collector is configured.
func (b *Backend) recordDurationMetrics(metric string, duration time.Duration, operation, status string) {
	if b.metricsCollector != nil {
		b.metricsCollector.RecordDuration(metric, duration, map[string]string{
			spanAttrOperation: operation,
			"status":          status,
		})
	}
}

// recordErrorMetrics counts database errors if the metrics collector is configured.
func (b *Backend) recordErrorMetrics(operation, errorType string) {
	if b.metricsCollector != nil {
		b.metricsCollector.IncrementCounter(metricDatabaseErrors, map[string]string{
			spanAttrOperation: operation,
			"status":          statusError,
			spanAttrErrorType: errorType,
		})
	}
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
func (b *Backend) startTraceSpan(ctx context.Context, name, operation string) (context.Context, SpanContext) {
	if b.tracingCollector != nil {
		return b.tracingCollector.StartSpan(ctx, name, map[string]string{spanAttrOperation: operation})
	}

	return ctx, nil
}

// finishTraceSpanSuccess finishes a span with success status and result attributes.
func (b *Backend) finishTraceSpanSuccess(span SpanContext, attrs map[string]string) {
	if b.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(statusSuccess)
	for key, value := range attrs {
		span.AddAttribute(key, value)
	}

	b.tracingCollector.FinishSpan(span, statusSuccess, attrs)
}

// finishTraceSpanError finishes a span with error status and the error type attribute.
func (b *Backend) finishTraceSpanError(span SpanContext, errorType string) {
	if b.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(statusError)
	span.AddAttribute(spanAttrErrorType, errorType)

	b.tracingCollector.FinishSpan(span, statusError, map[string]string{spanAttrErrorType: errorType})
}

// formatDurationAttr formats a duration for span attributes.
func (b *Backend) formatDurationAttr(duration time.Duration) string {
	return fmt.Sprintf("%.2f", b.toMilliseconds(duration))
}
