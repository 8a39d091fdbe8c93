package postgresengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/postgres-backend-go/backend"
	"github.com/ormkit/postgres-backend-go/postgresengine/internal/adapters"
)

/***** test doubles for the adapter interfaces *****/

type fakeRows struct {
	columns []string
	data    [][]any
	pos     int
	scanErr error
	rowsErr error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}

	row := r.data[r.pos-1]
	for i := range dest {
		ptr, ok := dest[i].(*any)
		if ok {
			*ptr = row[i]
			continue
		}

		if strPtr, isString := dest[i].(*string); isString {
			*strPtr = row[i].(string)
		}
	}

	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return r.columns, nil }
func (r *fakeRows) Close() error               { return nil }
func (r *fakeRows) Err() error                 { return r.rowsErr }

type fakeResult struct {
	affected    int64
	affectedErr error
}

func (r fakeResult) RowsAffected() (int64, error) { return r.affected, r.affectedErr }

type fakeSession struct {
	statements []string
	queryFn    func(sqlQuery string) (adapters.DBRows, error)
	execFn     func(sqlQuery string) (adapters.DBResult, error)
	execErr    error
	released   bool
}

func (s *fakeSession) Query(_ context.Context, sqlQuery string, _ ...any) (adapters.DBRows, error) {
	s.statements = append(s.statements, sqlQuery)

	if s.queryFn != nil {
		return s.queryFn(sqlQuery)
	}

	return &fakeRows{}, nil
}

func (s *fakeSession) Exec(_ context.Context, sqlQuery string, _ ...any) (adapters.DBResult, error) {
	s.statements = append(s.statements, sqlQuery)

	if s.execErr != nil {
		return nil, s.execErr
	}

	if s.execFn != nil {
		return s.execFn(sqlQuery)
	}

	return fakeResult{}, nil
}

func (s *fakeSession) Release() error {
	s.released = true
	return nil
}

type fakeAdapter struct {
	queries   []string
	queryArgs [][]any
	execs     []string
	execArgs  [][]any
	queryFn   func(sqlQuery string) (adapters.DBRows, error)
	execFn    func(sqlQuery string) (adapters.DBResult, error)
	session   *fakeSession
	queryErr  error
}

func (a *fakeAdapter) Query(_ context.Context, sqlQuery string, args ...any) (adapters.DBRows, error) {
	a.queries = append(a.queries, sqlQuery)
	a.queryArgs = append(a.queryArgs, args)

	if a.queryErr != nil {
		return nil, a.queryErr
	}

	if a.queryFn != nil {
		return a.queryFn(sqlQuery)
	}

	return &fakeRows{}, nil
}

func (a *fakeAdapter) Exec(_ context.Context, sqlQuery string, args ...any) (adapters.DBResult, error) {
	a.execs = append(a.execs, sqlQuery)
	a.execArgs = append(a.execArgs, args)

	if a.execFn != nil {
		return a.execFn(sqlQuery)
	}

	return fakeResult{affected: 1}, nil
}

func (a *fakeAdapter) Acquire(_ context.Context) (adapters.DBSession, error) {
	if a.session == nil {
		a.session = &fakeSession{}
	}

	return a.session, nil
}

type recordedMetric struct {
	name   string
	labels map[string]string
}

type fakeMetricsCollector struct {
	durations []recordedMetric
	counters  []recordedMetric
	values    []recordedMetric
}

func (c *fakeMetricsCollector) RecordDuration(metric string, _ time.Duration, labels map[string]string) {
	c.durations = append(c.durations, recordedMetric{name: metric, labels: labels})
}

func (c *fakeMetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	c.counters = append(c.counters, recordedMetric{name: metric, labels: labels})
}

func (c *fakeMetricsCollector) RecordValue(metric string, _ float64, labels map[string]string) {
	c.values = append(c.values, recordedMetric{name: metric, labels: labels})
}

type fakeSpan struct {
	status     string
	attributes map[string]string
}

func (s *fakeSpan) SetStatus(status string) { s.status = status }

func (s *fakeSpan) AddAttribute(key, value string) {
	if s.attributes == nil {
		s.attributes = map[string]string{}
	}
	s.attributes[key] = value
}

type fakeTracingCollector struct {
	started  []string
	finished []string
	spans    []*fakeSpan
}

func (c *fakeTracingCollector) StartSpan(ctx context.Context, name string, _ map[string]string) (context.Context, SpanContext) {
	span := &fakeSpan{}
	c.started = append(c.started, name)
	c.spans = append(c.spans, span)

	return ctx, span
}

func (c *fakeTracingCollector) FinishSpan(_ SpanContext, status string, _ map[string]string) {
	c.finished = append(c.finished, status)
}

func newTestBackend(t *testing.T, adapter adapters.DBAdapter, options ...Option) *Backend {
	t.Helper()

	b, err := newBackendWithAdapter(adapter, options...)
	require.NoError(t, err)

	return b
}

/***** tests *****/

func Test_ReturnsRows_ShouldClassifyStatements(t *testing.T) {
	testCases := []struct {
		name     string
		sqlQuery string
		expected bool
	}{
		{"select", "SELECT * FROM users", true},
		{"lowercase select", "select 1", true},
		{"with cte", "WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"show", "SHOW transaction_isolation", true},
		{"explain", "EXPLAIN SELECT 1", true},
		{"values", "VALUES (1)", true},
		{"table", "TABLE users", true},
		{"leading comment", "-- latest\nSELECT 1", true},
		{"leading whitespace", "   SELECT 1", true},
		{"insert", "INSERT INTO users (username) VALUES ('a')", false},
		{"insert returning", "INSERT INTO users (username) VALUES ('a') RETURNING id", true},
		{"update", "UPDATE users SET active = FALSE", false},
		{"delete returning", "DELETE FROM users WHERE id = 1 RETURNING id", true},
		{"create table", "CREATE TABLE t (id INT)", false},
		{"comment only", "-- nothing here", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, returnsRows(tc.sqlQuery))
		})
	}
}

func Test_NormalizeValue_ShouldConvertByteSlicesToStrings(t *testing.T) {
	assert.Equal(t, "text", normalizeValue([]byte("text")))
	assert.Equal(t, int64(5), normalizeValue(int64(5)))
	assert.Nil(t, normalizeValue(nil))
}

func Test_Execute_ShouldCollectRows_ForSelectStatements(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			return &fakeRows{
				columns: []string{"id", "username"},
				data: [][]any{
					{int64(1), []byte("alice")},
					{int64(2), []byte("bob")},
				},
			}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	result, err := b.Execute(context.Background(), "SELECT id, username FROM users")

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "username"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(1), result.Rows[0]["id"])
	assert.Equal(t, "alice", result.Rows[0]["username"])
	assert.Equal(t, int64(2), result.AffectedRows)
	assert.Len(t, adapter.queries, 1)
	assert.Empty(t, adapter.execs)
}

func Test_Execute_ShouldUseExecPath_ForStatementsWithoutResultSet(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		execFn: func(string) (adapters.DBResult, error) {
			return fakeResult{affected: 3}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	result, err := b.Execute(context.Background(), "UPDATE users SET active = FALSE")

	// assert
	require.NoError(t, err)
	assert.False(t, result.HasRows())
	assert.Equal(t, int64(3), result.AffectedRows)
	assert.Empty(t, adapter.queries)
	assert.Len(t, adapter.execs, 1)
}

func Test_Execute_ShouldMapDriverErrors(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{queryErr: errors.New("connection refused")}
	b := newTestBackend(t, adapter)

	// act
	_, err := b.Execute(context.Background(), "SELECT 1")

	// assert
	assert.ErrorIs(t, err, backend.ErrQueryFailed)
}

func Test_Execute_ShouldForwardArgsToDriver(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			return &fakeRows{columns: []string{"id"}, data: [][]any{{int64(42)}}}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	_, err := b.Execute(context.Background(), "SELECT id FROM users WHERE id = $1", 42)

	// assert
	require.NoError(t, err)
	require.Len(t, adapter.queryArgs, 1)
	assert.Equal(t, []any{42}, adapter.queryArgs[0])
}

func Test_ExecuteMany_ShouldSumAffectedRows_AcrossParameterSets(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		execFn: func(string) (adapters.DBResult, error) {
			return fakeResult{affected: 2}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	result, err := b.ExecuteMany(context.Background(), "UPDATE users SET active = $1 WHERE id = $2", [][]any{
		{true, 1},
		{false, 2},
		{true, 3},
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.AffectedRows)
	require.Len(t, adapter.execs, 3)
	assert.Equal(t, []any{false, 2}, adapter.execArgs[1])
}

func Test_ExecuteMany_ShouldStopAtFirstFailingParameterSet(t *testing.T) {
	// arrange
	calls := 0
	adapter := &fakeAdapter{
		execFn: func(string) (adapters.DBResult, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("syntax error")
			}
			return fakeResult{affected: 1}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	_, err := b.ExecuteMany(context.Background(), "INSERT INTO users (username) VALUES ($1)", [][]any{
		{"alice"},
		{"bob"},
		{"carol"},
	})

	// assert
	require.Error(t, err)
	assert.Len(t, adapter.execs, 2)

	var indexErr *StatementIndexError
	require.ErrorAs(t, err, &indexErr)
	assert.Equal(t, 1, indexErr.Index)
}

func Test_ExecuteBatch_ShouldStopAtFirstFailure(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		execFn: func(sqlQuery string) (adapters.DBResult, error) {
			if sqlQuery == "boom" {
				return nil, errors.New("syntax error")
			}
			return fakeResult{affected: 1}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	results, err := b.ExecuteBatch(context.Background(), []string{
		"CREATE TABLE a (id INT)",
		"boom",
		"CREATE TABLE b (id INT)",
	})

	// assert
	require.Error(t, err)
	assert.Len(t, results, 1)
	assert.Len(t, adapter.execs, 2)

	var indexErr *StatementIndexError
	require.ErrorAs(t, err, &indexErr)
	assert.Equal(t, 1, indexErr.Index)
}

func Test_ServerVersion_ShouldDetectAndCache(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			return &fakeRows{
				columns: []string{"version"},
				data:    [][]any{{"PostgreSQL 15.4 on x86_64-pc-linux-gnu"}},
			}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	first := b.ServerVersion(context.Background())
	second := b.ServerVersion(context.Background())

	// assert
	assert.Equal(t, ServerVersion{Major: 15, Minor: 4}, first)
	assert.Equal(t, first, second)
	assert.Len(t, adapter.queries, 1)
}

func Test_ServerVersion_ShouldFallBackToDefault_WhenDetectionFails(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{queryErr: errors.New("no connection")}
	b := newTestBackend(t, adapter)

	// act
	version := b.ServerVersion(context.Background())

	// assert
	assert.Equal(t, DefaultServerVersion, version)
}

func Test_WithServerVersion_ShouldSkipDetection(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{}
	b := newTestBackend(t, adapter, WithServerVersion(ServerVersion{Major: 9, Minor: 4}))

	// act
	caps := b.Capabilities(context.Background())

	// assert
	assert.False(t, caps.SupportsUpsert())
	assert.True(t, caps.SupportsJSONB())
	assert.Empty(t, adapter.queries)
}

func Test_Query_ShouldRenderAndExecuteStatementIR(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			return &fakeRows{columns: []string{"id"}, data: [][]any{{int64(1)}}}, nil
		},
	}
	b := newTestBackend(t, adapter, WithServerVersion(ServerVersion{Major: 16}))

	// act
	result, err := b.Query(context.Background(), backend.Select("users", "id").
		WhereCond(backend.Eq{Column: "username", Value: "alice"}))

	// assert
	require.NoError(t, err)
	require.Len(t, adapter.queries, 1)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE ("username" = 'alice')`, adapter.queries[0])
	assert.Len(t, result.Rows, 1)
}

func Test_Insert_ShouldRouteByReturningClause(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			return &fakeRows{columns: []string{"id"}, data: [][]any{{int64(7)}}}, nil
		},
	}
	b := newTestBackend(t, adapter, WithServerVersion(ServerVersion{Major: 16}))

	// act
	withReturning, withErr := b.Insert(context.Background(), backend.InsertInto("users", "username").
		Values("alice").
		WithReturning("id"))
	withoutReturning, withoutErr := b.Insert(context.Background(), backend.InsertInto("users", "username").
		Values("bob"))

	// assert
	require.NoError(t, withErr)
	assert.Equal(t, int64(7), withReturning.Rows[0]["id"])
	assert.Len(t, adapter.queries, 1)

	require.NoError(t, withoutErr)
	assert.False(t, withoutReturning.HasRows())
	assert.Len(t, adapter.execs, 1)
}

func Test_Insert_ShouldConvertValuesThroughRegistry(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{}
	b := newTestBackend(t, adapter, WithServerVersion(ServerVersion{Major: 16}))

	// act
	_, err := b.Insert(context.Background(), backend.InsertInto("users", "profile").
		Values(map[string]any{"city": "Berlin"}))

	// assert
	require.NoError(t, err)
	require.Len(t, adapter.execs, 1)
	assert.Contains(t, adapter.execs[0], `'{"city":"Berlin"}'`)
}

func Test_Update_ShouldRenderSetClauseFromIR(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{}
	b := newTestBackend(t, adapter, WithServerVersion(ServerVersion{Major: 16}))

	// act
	_, err := b.Update(context.Background(), backend.Update("users", map[string]any{"active": false}).
		WhereCond(backend.Eq{Column: "id", Value: 1}))

	// assert
	require.NoError(t, err)
	require.Len(t, adapter.execs, 1)
	assert.Contains(t, adapter.execs[0], `UPDATE "users" SET`)
	assert.Contains(t, adapter.execs[0], `WHERE ("id" = 1)`)
}

func Test_Delete_ShouldRenderDeleteFromIR(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{}
	b := newTestBackend(t, adapter, WithServerVersion(ServerVersion{Major: 16}))

	// act
	_, err := b.Delete(context.Background(), backend.DeleteFrom("orders").
		WhereCond(backend.Eq{Column: "status", Value: "canceled"}))

	// assert
	require.NoError(t, err)
	require.Len(t, adapter.execs, 1)
	assert.Contains(t, adapter.execs[0], `DELETE FROM "orders"`)
}

func Test_Ping_ShouldIssueProbeQuery(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{}
	b := newTestBackend(t, adapter)

	// act
	err := b.Ping(context.Background(), false)

	// assert
	assert.NoError(t, err)
	require.Len(t, adapter.queries, 1)
	assert.Equal(t, "SELECT 1", adapter.queries[0])
}

func Test_Ping_ShouldRetryOnce_WithReconnect(t *testing.T) {
	// arrange
	calls := 0
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			return &fakeRows{}, nil
		},
	}
	b := newTestBackend(t, adapter)

	// act
	err := b.Ping(context.Background(), true)

	// assert
	assert.NoError(t, err)
	assert.Len(t, adapter.queries, 2)
}

func Test_Ping_ShouldNotRetry_WithoutReconnect(t *testing.T) {
	// arrange
	adapter := &fakeAdapter{queryErr: errors.New("connection reset")}
	b := newTestBackend(t, adapter)

	// act
	err := b.Ping(context.Background(), false)

	// assert
	assert.Error(t, err)
	assert.Len(t, adapter.queries, 1)
}

func Test_Backend_ShouldRecordMetrics_ForQueryAndExecPaths(t *testing.T) {
	// arrange
	collector := &fakeMetricsCollector{}
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			return &fakeRows{columns: []string{"id"}, data: [][]any{{int64(1)}}}, nil
		},
	}
	b := newTestBackend(t, adapter, WithMetrics(collector))

	// act
	_, queryErr := b.Execute(context.Background(), "SELECT id FROM users")
	_, execErr := b.Execute(context.Background(), "UPDATE users SET active = FALSE")

	// assert
	require.NoError(t, queryErr)
	require.NoError(t, execErr)
	require.Len(t, collector.durations, 2)
	assert.Equal(t, "postgres_backend_query_duration", collector.durations[0].name)
	assert.Equal(t, "success", collector.durations[0].labels["status"])
	assert.Equal(t, "postgres_backend_exec_duration", collector.durations[1].name)
	assert.Empty(t, collector.counters)
}

func Test_Backend_ShouldCountDatabaseErrors_InMetrics(t *testing.T) {
	// arrange
	collector := &fakeMetricsCollector{}
	adapter := &fakeAdapter{queryErr: errors.New("connection refused")}
	b := newTestBackend(t, adapter, WithMetrics(collector))

	// act
	_, err := b.Execute(context.Background(), "SELECT 1")

	// assert
	require.Error(t, err)
	require.Len(t, collector.counters, 1)
	assert.Equal(t, "postgres_backend_database_errors", collector.counters[0].name)
	assert.Equal(t, "query_failed", collector.counters[0].labels["error_type"])
}

func Test_Backend_ShouldEmitTracingSpans_WithStatus(t *testing.T) {
	// arrange
	collector := &fakeTracingCollector{}
	adapter := &fakeAdapter{
		queryFn: func(string) (adapters.DBRows, error) {
			return &fakeRows{columns: []string{"id"}, data: [][]any{{int64(1)}}}, nil
		},
	}
	b := newTestBackend(t, adapter, WithTracing(collector))

	// act
	_, err := b.Execute(context.Background(), "SELECT id FROM users")

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres_backend.query"}, collector.started)
	assert.Equal(t, []string{"success"}, collector.finished)
	require.Len(t, collector.spans, 1)
	assert.Equal(t, "success", collector.spans[0].status)
	assert.Equal(t, "1", collector.spans[0].attributes["row_count"])
}

func Test_Backend_ShouldEmitErrorSpans_WhenTheDriverFails(t *testing.T) {
	// arrange
	collector := &fakeTracingCollector{}
	adapter := &fakeAdapter{queryErr: errors.New("connection refused")}
	b := newTestBackend(t, adapter, WithTracing(collector))

	// act
	_, err := b.Execute(context.Background(), "SELECT 1")

	// assert
	require.Error(t, err)
	assert.Equal(t, []string{"error"}, collector.finished)
	require.Len(t, collector.spans, 1)
	assert.Equal(t, "query_failed", collector.spans[0].attributes["error_type"])
}
