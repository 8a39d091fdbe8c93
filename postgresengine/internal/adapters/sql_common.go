package adapters

import (
	"context"
	"database/sql"
)

// stdRows wraps standard library sql.Rows to implement the DBRows interface.
type stdRows struct {
	rows *sql.Rows
}

// Next advances to the next row.
func (s *stdRows) Next() bool {
	return s.rows.Next()
}

// Scan copies row values into provided destinations.
func (s *stdRows) Scan(dest ...any) error {
	return s.rows.Scan(dest...)
}

// Columns returns the column names of the result set in server order.
func (s *stdRows) Columns() ([]string, error) {
	return s.rows.Columns()
}

// Close closes the rows iterator.
func (s *stdRows) Close() error {
	return s.rows.Close()
}

// Err returns any error that occurred during iteration.
func (s *stdRows) Err() error {
	return s.rows.Err()
}

// stdResult wraps standard library sql.Result to implement the DBResult interface.
type stdResult struct {
	result sql.Result
}

// RowsAffected returns the number of rows affected by the command.
func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}

// stdSession wraps a pinned sql.Conn to implement the DBSession interface.
type stdSession struct {
	conn *sql.Conn
}

// Query executes a query on the pinned connection.
func (s *stdSession) Query(ctx context.Context, query string, args ...any) (DBRows, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows}, nil
}

// Exec executes a statement on the pinned connection.
func (s *stdSession) Exec(ctx context.Context, query string, args ...any) (DBResult, error) {
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

// Release closes the pinned connection, returning it to the pool.
func (s *stdSession) Release() error {
	return s.conn.Close()
}
