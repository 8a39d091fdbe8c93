package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/ormkit/postgres-backend-go/backend"
	"github.com/ormkit/postgres-backend-go/postgresengine/internal/adapters"
)

const (
	stmtSelectVersion   = "SELECT version()"
	stmtPing            = "SELECT 1"
	returningMarker     = " RETURNING "
	logActionStatements = "statement batch"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

// Backend executes SQL against a PostgreSQL server through one of the
// supported native drivers and translates the statement IR into the
// PostgreSQL dialect. The zero value is not usable, use one of the
// NewBackendFrom* constructors.
type Backend struct {
	db               adapters.DBAdapter
	logger           Logger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
	registry         *AdapterRegistry

	versionMu     sync.Mutex
	serverVersion *ServerVersion
}

// NewBackendFromPGXPool creates a new Backend using a pgx pool with optional configuration.
func NewBackendFromPGXPool(db *pgxpool.Pool, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, backend.ErrNilDatabaseConnection
	}

	return newBackendWithAdapter(adapters.NewPGXAdapter(db), options...)
}

// NewBackendFromPGXPoolWithReplica creates a new Backend that routes row-returning
// statements to the replica pool and everything else to the primary.
func NewBackendFromPGXPoolWithReplica(primary, replica *pgxpool.Pool, options ...Option) (*Backend, error) {
	if primary == nil || replica == nil {
		return nil, backend.ErrNilDatabaseConnection
	}

	return newBackendWithAdapter(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewBackendFromSQLDB creates a new Backend using a sql.DB with optional configuration.
func NewBackendFromSQLDB(db *sql.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, backend.ErrNilDatabaseConnection
	}

	return newBackendWithAdapter(adapters.NewSQLAdapter(db), options...)
}

// NewBackendFromSQLX creates a new Backend using a sqlx.DB with optional configuration.
func NewBackendFromSQLX(db *sqlx.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, backend.ErrNilDatabaseConnection
	}

	return newBackendWithAdapter(adapters.NewSQLXAdapter(db), options...)
}

func newBackendWithAdapter(db adapters.DBAdapter, options ...Option) (*Backend, error) {
	b := &Backend{
		db:       db,
		registry: NewAdapterRegistry(),
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Ping verifies connectivity to the server. With reconnect set, a failed
// probe is retried once so the pool can replace a broken connection.
func (b *Backend) Ping(ctx context.Context, reconnect bool) error {
	_, err := b.runQuery(ctx, stmtPing)
	if err == nil || !reconnect {
		return err
	}

	b.logWarn(logMsgPingFailed, logAttrError, err.Error())

	_, retryErr := b.runQuery(ctx, stmtPing)

	return retryErr
}

// ServerVersion returns the connected server's version, detecting it on first
// use via SELECT version() and caching the result. When detection fails the
// default version is cached so capability gating stays deterministic.
func (b *Backend) ServerVersion(ctx context.Context) ServerVersion {
	b.versionMu.Lock()
	defer b.versionMu.Unlock()

	if b.serverVersion != nil {
		return *b.serverVersion
	}

	detected := b.detectServerVersion(ctx)
	b.serverVersion = &detected

	return detected
}

func (b *Backend) detectServerVersion(ctx context.Context) ServerVersion {
	result, queryErr := b.runQuery(ctx, stmtSelectVersion)
	if queryErr != nil || !result.HasRows() {
		b.logWarn(logMsgVersionDetectFailed)
		return DefaultServerVersion
	}

	banner, _ := result.Rows[0][result.Columns[0]].(string)

	version, ok := ParseServerVersion(banner)
	if !ok {
		b.logWarn(logMsgVersionDetectFailed, logAttrQuery, banner)
		return DefaultServerVersion
	}

	return version
}

// Capabilities returns the capability descriptor for the connected server.
func (b *Backend) Capabilities(ctx context.Context) Capabilities {
	return NewCapabilities(b.ServerVersion(ctx))
}

// Dialect returns a dialect bound to the connected server's capabilities.
func (b *Backend) Dialect(ctx context.Context) Dialect {
	return NewDialect(b.Capabilities(ctx))
}

// Execute runs a raw SQL statement and returns a unified result.
// Row-returning statements (queries, and DML with RETURNING) deliver rows,
// everything else delivers the affected row count. Positional args bind to
// $1..$n placeholders in the statement and are forwarded to the driver.
func (b *Backend) Execute(ctx context.Context, sqlQuery sqlQueryString, args ...any) (backend.QueryResult, error) {
	if returnsRows(sqlQuery) {
		return b.runQuery(ctx, sqlQuery, args...)
	}

	return b.runExec(ctx, sqlQuery, args...)
}

// ExecuteMany runs one statement repeatedly, once per parameter set, and
// sums the affected rows. It stops at the first failing set, whose index is
// attached to the returned error.
func (b *Backend) ExecuteMany(ctx context.Context, sqlQuery sqlQueryString, paramSets [][]any) (backend.QueryResult, error) {
	start := time.Now()

	var affected rowsAffectedInt64

	for i, params := range paramSets {
		result, err := b.runExec(ctx, sqlQuery, params...)
		if err != nil {
			return backend.QueryResult{}, errors.Join(err, &StatementIndexError{Index: i})
		}

		affected += result.AffectedRows
	}

	duration := time.Since(start)
	b.logOperation(logActionBatch, logAttrRowsAffected, affected, logAttrDurationMS, b.toMilliseconds(duration))

	return backend.QueryResult{AffectedRows: affected, Duration: duration}, nil
}

// ExecuteBatch runs distinct statements in order, stopping at the first
// failure. The failed statement's error is returned together with its index.
func (b *Backend) ExecuteBatch(ctx context.Context, statements []sqlQueryString) ([]backend.QueryResult, error) {
	results := make([]backend.QueryResult, 0, len(statements))

	for i, stmt := range statements {
		result, err := b.Execute(ctx, stmt)
		if err != nil {
			return results, errors.Join(err, &StatementIndexError{Index: i})
		}

		results = append(results, result)
	}

	b.logOperation(logActionStatements, logAttrRowCount, len(results))

	return results, nil
}

// StatementIndexError marks which statement of a batch failed.
type StatementIndexError struct {
	Index int
}

func (e *StatementIndexError) Error() string {
	return "statement " + strconv.Itoa(e.Index) + " failed"
}

// Query renders a select statement and executes it.
func (b *Backend) Query(ctx context.Context, stmt backend.SelectStatement) (backend.QueryResult, error) {
	sqlQuery, buildErr := b.Dialect(ctx).RenderSelect(stmt)
	if buildErr != nil {
		b.logError(logMsgBuildStatementFailed, buildErr)
		return backend.QueryResult{}, buildErr
	}

	return b.runQuery(ctx, sqlQuery)
}

// Insert renders an insert statement and executes it.
// With a RETURNING clause the generated values come back as rows.
func (b *Backend) Insert(ctx context.Context, stmt backend.InsertStatement) (backend.QueryResult, error) {
	converted, convErr := b.convertInsertValues(stmt)
	if convErr != nil {
		return backend.QueryResult{}, convErr
	}

	sqlQuery, buildErr := b.Dialect(ctx).RenderInsert(converted)
	if buildErr != nil {
		b.logError(logMsgBuildStatementFailed, buildErr)
		return backend.QueryResult{}, buildErr
	}

	if len(stmt.Returning) > 0 {
		return b.runQuery(ctx, sqlQuery)
	}

	return b.runExec(ctx, sqlQuery)
}

// Update renders an update statement and executes it.
func (b *Backend) Update(ctx context.Context, stmt backend.UpdateStatement) (backend.QueryResult, error) {
	converted, convErr := b.convertUpdateValues(stmt)
	if convErr != nil {
		return backend.QueryResult{}, convErr
	}

	sqlQuery, buildErr := b.Dialect(ctx).RenderUpdate(converted)
	if buildErr != nil {
		b.logError(logMsgBuildStatementFailed, buildErr)
		return backend.QueryResult{}, buildErr
	}

	if len(stmt.Returning) > 0 {
		return b.runQuery(ctx, sqlQuery)
	}

	return b.runExec(ctx, sqlQuery)
}

// Delete renders a delete statement and executes it.
func (b *Backend) Delete(ctx context.Context, stmt backend.DeleteStatement) (backend.QueryResult, error) {
	sqlQuery, buildErr := b.Dialect(ctx).RenderDelete(stmt)
	if buildErr != nil {
		b.logError(logMsgBuildStatementFailed, buildErr)
		return backend.QueryResult{}, buildErr
	}

	if len(stmt.Returning) > 0 {
		return b.runQuery(ctx, sqlQuery)
	}

	return b.runExec(ctx, sqlQuery)
}

// Transaction pins a connection and returns a transaction manager for it.
// The caller must call Close on the manager to return the connection.
func (b *Backend) Transaction(ctx context.Context) (*TxManager, error) {
	session, err := b.db.Acquire(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	return newTxManager(session, b.logger), nil
}

// BeginTx pins a connection, begins a transaction with the given options and
// returns the manager with the transaction already active.
func (b *Backend) BeginTx(ctx context.Context, opts backend.TxOptions) (*TxManager, error) {
	tx, err := b.Transaction(ctx)
	if err != nil {
		return nil, err
	}

	if err := tx.BeginWith(ctx, opts); err != nil {
		closeErr := tx.Close()
		if closeErr != nil {
			b.logWarn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}

		return nil, err
	}

	return tx, nil
}

func (b *Backend) convertInsertValues(stmt backend.InsertStatement) (backend.InsertStatement, error) {
	rows := make([][]any, len(stmt.Rows))

	for i, row := range stmt.Rows {
		converted := make([]any, len(row))
		for j, value := range row {
			out, err := b.registry.ToDatabase(value)
			if err != nil {
				return stmt, err
			}
			converted[j] = out
		}
		rows[i] = converted
	}

	stmt.Rows = rows

	return stmt, nil
}

func (b *Backend) convertUpdateValues(stmt backend.UpdateStatement) (backend.UpdateStatement, error) {
	set := make(map[string]any, len(stmt.Set))

	for column, value := range stmt.Set {
		out, err := b.registry.ToDatabase(value)
		if err != nil {
			return stmt, err
		}
		set[column] = out
	}

	stmt.Set = set

	return stmt, nil
}

// runQuery executes a row-returning statement and materializes the result set.
func (b *Backend) runQuery(ctx context.Context, sqlQuery sqlQueryString, args ...any) (backend.QueryResult, error) {
	queryCtx, span := b.startTraceSpan(ctx, spanNameQuery, logActionQuery)

	start := time.Now()
	rows, queryErr := b.db.Query(queryCtx, sqlQuery, args...)
	duration := time.Since(start)
	b.logQueryWithDuration(sqlQuery, logActionQuery, duration)

	if queryErr != nil {
		mapped := mapError(queryErr)
		b.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		b.recordErrorMetrics(logActionQuery, errorTypeQueryFailed)
		b.recordDurationMetrics(metricQueryDuration, duration, logActionQuery, statusError)
		b.finishTraceSpanError(span, errorTypeQueryFailed)
		return backend.QueryResult{}, mapped
	}
	defer b.closeRows(rows)

	result, scanErr := b.collectRows(rows)
	if scanErr != nil {
		b.recordErrorMetrics(logActionQuery, errorTypeScanFailed)
		b.finishTraceSpanError(span, errorTypeScanFailed)
		return backend.QueryResult{}, scanErr
	}

	result.Duration = duration
	result.AffectedRows = rowsAffectedInt64(len(result.Rows))

	b.logOperation(logMsgQueryCompleted, logAttrRowCount, len(result.Rows), logAttrDurationMS, b.toMilliseconds(duration))
	b.recordDurationMetrics(metricQueryDuration, duration, logActionQuery, statusSuccess)
	b.finishTraceSpanSuccess(span, map[string]string{
		spanAttrRowCount:   strconv.Itoa(len(result.Rows)),
		spanAttrDurationMS: b.formatDurationAttr(duration),
	})

	return result, nil
}

// runExec executes a statement without a result set.
func (b *Backend) runExec(ctx context.Context, sqlQuery sqlQueryString, args ...any) (backend.QueryResult, error) {
	execCtx, span := b.startTraceSpan(ctx, spanNameExec, logActionExec)

	start := time.Now()
	execResult, execErr := b.db.Exec(execCtx, sqlQuery, args...)
	duration := time.Since(start)
	b.logQueryWithDuration(sqlQuery, logActionExec, duration)

	if execErr != nil {
		mapped := mapError(execErr)
		b.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		b.recordErrorMetrics(logActionExec, errorTypeExecFailed)
		b.recordDurationMetrics(metricExecDuration, duration, logActionExec, statusError)
		b.finishTraceSpanError(span, errorTypeExecFailed)
		return backend.QueryResult{}, mapped
	}

	affected, affectedErr := execResult.RowsAffected()
	if affectedErr != nil {
		b.logError(logMsgRowsAffectedFailed, affectedErr)
		b.recordErrorMetrics(logActionExec, errorTypeExecFailed)
		b.finishTraceSpanError(span, errorTypeExecFailed)
		return backend.QueryResult{}, errors.Join(backend.ErrGettingRowsAffectedFailed, affectedErr)
	}

	b.logOperation(logMsgExecCompleted, logAttrRowsAffected, affected, logAttrDurationMS, b.toMilliseconds(duration))
	b.recordDurationMetrics(metricExecDuration, duration, logActionExec, statusSuccess)
	b.finishTraceSpanSuccess(span, map[string]string{
		spanAttrRowsAffected: strconv.FormatInt(affected, 10),
		spanAttrDurationMS:   b.formatDurationAttr(duration),
	})

	return backend.QueryResult{AffectedRows: affected, Duration: duration}, nil
}

func (b *Backend) collectRows(rows adapters.DBRows) (backend.QueryResult, error) {
	columns, columnsErr := rows.Columns()
	if columnsErr != nil {
		return backend.QueryResult{}, errors.Join(backend.ErrScanningDBRowFailed, columnsErr)
	}

	var collected []backend.Row

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if scanErr := rows.Scan(pointers...); scanErr != nil {
			b.logError(logMsgScanRowFailed, scanErr)
			return backend.QueryResult{}, errors.Join(backend.ErrScanningDBRowFailed, scanErr)
		}

		row := make(backend.Row, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}

		collected = append(collected, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return backend.QueryResult{}, mapError(rowsErr)
	}

	return backend.QueryResult{Columns: columns, Rows: collected}, nil
}

// closeRows safely closes database rows and logs any errors.
func (b *Backend) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		b.logWarn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// normalizeValue makes driver differences invisible to callers:
// lib/pq delivers text columns as []byte where pgx delivers string.
func normalizeValue(value any) any {
	if raw, ok := value.([]byte); ok {
		return string(raw)
	}

	return value
}

// returnsRows classifies a raw SQL statement by its leading keyword,
// treating DML with a RETURNING clause as row-returning.
func returnsRows(sqlQuery sqlQueryString) bool {
	trimmed := strings.TrimSpace(sqlQuery)

	for strings.HasPrefix(trimmed, "--") {
		if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[idx+1:])
		} else {
			return false
		}
	}

	firstWord := trimmed
	if idx := strings.IndexFunc(trimmed, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '(' }); idx >= 0 {
		firstWord = trimmed[:idx]
	}

	switch strings.ToUpper(firstWord) {
	case "SELECT", "VALUES", "SHOW", "EXPLAIN", "WITH", "TABLE":
		return true
	}

	return strings.Contains(strings.ToUpper(trimmed), returningMarker)
}
