package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ormkit/postgres-backend-go/backend"

	"github.com/ormkit/postgres-backend-go/postgresengine/internal/adapters"
)

const savepointPrefix = "SP_"

var ErrSavepointNotFound = errors.New("savepoint does not exist in this transaction")

// TxManager drives a transaction on a single pinned connection by issuing
// transaction control statements as SQL text. Nested Begin calls map onto
// savepoints, so the nesting depth mirrors PostgreSQL's savepoint stack.
//
// A manager is not safe for concurrent use.
type TxManager struct {
	session adapters.DBSession
	logger  Logger

	state      backend.TxState
	isolation  backend.IsolationLevel
	readOnly   bool
	deferrable *bool

	nestingLevel int
	savepoints   []string
	deferred     []string
}

func newTxManager(session adapters.DBSession, logger Logger) *TxManager {
	return &TxManager{
		session: session,
		logger:  logger,
		state:   backend.TxInactive,
	}
}

// State returns the transaction lifecycle state.
func (tx *TxManager) State() backend.TxState {
	return tx.state
}

// IsActive reports whether a transaction is in progress.
func (tx *TxManager) IsActive() bool {
	return tx.state == backend.TxActive
}

// SetIsolationLevel configures the isolation level for the next Begin.
// It fails while a transaction is active.
func (tx *TxManager) SetIsolationLevel(level backend.IsolationLevel) error {
	if tx.IsActive() {
		return errors.Join(
			backend.ErrInvalidTransactionState,
			errors.New("cannot change isolation level inside an active transaction"),
		)
	}

	tx.isolation = level

	return nil
}

// SetReadOnly configures read-only mode for the next Begin.
// It fails while a transaction is active.
func (tx *TxManager) SetReadOnly(readOnly bool) error {
	if tx.IsActive() {
		return errors.Join(
			backend.ErrInvalidTransactionState,
			errors.New("cannot change read-only mode inside an active transaction"),
		)
	}

	tx.readOnly = readOnly

	return nil
}

// SetDeferrable configures the DEFERRABLE property for the next Begin.
// It only takes effect with the SERIALIZABLE isolation level and fails
// while a transaction is active.
func (tx *TxManager) SetDeferrable(deferrable bool) error {
	if tx.IsActive() {
		return errors.Join(
			backend.ErrInvalidTransactionState,
			errors.New("cannot change deferrable mode inside an active transaction"),
		)
	}

	tx.deferrable = &deferrable

	return nil
}

// BeginWith applies the given options and begins a transaction.
func (tx *TxManager) BeginWith(ctx context.Context, opts backend.TxOptions) error {
	if err := tx.SetIsolationLevel(opts.Isolation); err != nil {
		return err
	}

	if err := tx.SetReadOnly(opts.ReadOnly); err != nil {
		return err
	}

	if opts.Deferrable != nil {
		if err := tx.SetDeferrable(*opts.Deferrable); err != nil {
			return err
		}
	}

	return tx.Begin(ctx)
}

// Begin starts a transaction. When one is already active, a savepoint is
// created instead so the call nests.
func (tx *TxManager) Begin(ctx context.Context) error {
	if tx.IsActive() {
		name := fmt.Sprintf("%s%d", savepointPrefix, tx.nestingLevel+1)

		if err := tx.createSavepoint(ctx, name); err != nil {
			return err
		}

		tx.nestingLevel++

		return nil
	}

	stmt := tx.buildBeginStatement()

	if err := tx.exec(ctx, stmt); err != nil {
		return err
	}

	tx.state = backend.TxActive
	tx.nestingLevel = 1
	tx.savepoints = tx.savepoints[:0]
	tx.deferred = tx.deferred[:0]

	tx.logOp(logMsgTxBegun, logAttrIsolation, tx.isolation.String())

	return nil
}

// buildBeginStatement renders the BEGIN statement for the configured options.
// DEFERRABLE is only valid for SERIALIZABLE transactions and is dropped otherwise.
func (tx *TxManager) buildBeginStatement() string {
	var sb strings.Builder
	sb.WriteString("BEGIN")

	if tx.isolation != backend.LevelDefault {
		sb.WriteString(" ISOLATION LEVEL ")
		sb.WriteString(tx.isolation.String())
	}

	if tx.readOnly {
		sb.WriteString(" READ ONLY")
	}

	if tx.deferrable != nil && tx.isolation == backend.LevelSerializable {
		if *tx.deferrable {
			sb.WriteString(" DEFERRABLE")
		} else {
			sb.WriteString(" NOT DEFERRABLE")
		}
	}

	return sb.String()
}

// Commit commits the transaction. In a nested transaction the corresponding
// savepoint is released instead.
func (tx *TxManager) Commit(ctx context.Context) error {
	if !tx.IsActive() {
		return errors.Join(backend.ErrInvalidTransactionState, errors.New("no active transaction to commit"))
	}

	if tx.nestingLevel > 1 {
		name := tx.autoSavepointName()
		tx.nestingLevel--
		return tx.ReleaseSavepoint(ctx, name)
	}

	if err := tx.exec(ctx, "COMMIT"); err != nil {
		return err
	}

	tx.state = backend.TxCommitted
	tx.nestingLevel = 0

	tx.logOp(logMsgTxCommitted)

	return nil
}

// Rollback rolls the transaction back. In a nested transaction only the work
// since the corresponding savepoint is undone.
func (tx *TxManager) Rollback(ctx context.Context) error {
	if !tx.IsActive() {
		return errors.Join(backend.ErrInvalidTransactionState, errors.New("no active transaction to roll back"))
	}

	if tx.nestingLevel > 1 {
		name := tx.autoSavepointName()
		tx.nestingLevel--

		if err := tx.RollbackToSavepoint(ctx, name); err != nil {
			return err
		}

		return tx.ReleaseSavepoint(ctx, name)
	}

	if err := tx.exec(ctx, "ROLLBACK"); err != nil {
		return err
	}

	tx.state = backend.TxRolledBack
	tx.nestingLevel = 0

	tx.logOp(logMsgTxRolledBack)

	return nil
}

// CreateSavepoint creates a named savepoint, beginning a transaction first
// when none is active.
func (tx *TxManager) CreateSavepoint(ctx context.Context, name string) error {
	if !tx.IsActive() {
		if err := tx.Begin(ctx); err != nil {
			return err
		}
	}

	return tx.createSavepoint(ctx, name)
}

func (tx *TxManager) createSavepoint(ctx context.Context, name string) error {
	if err := tx.exec(ctx, "SAVEPOINT "+quoteIdentifier(name)); err != nil {
		return err
	}

	tx.savepoints = append(tx.savepoints, name)

	tx.logOp(logMsgSavepointCreated, logAttrSavepoint, name)

	return nil
}

// ReleaseSavepoint releases a savepoint and forgets it and everything above it.
func (tx *TxManager) ReleaseSavepoint(ctx context.Context, name string) error {
	idx, found := tx.findSavepoint(name)
	if !found {
		return errors.Join(backend.ErrInvalidTransactionState, ErrSavepointNotFound)
	}

	if err := tx.exec(ctx, "RELEASE SAVEPOINT "+quoteIdentifier(name)); err != nil {
		return err
	}

	tx.savepoints = tx.savepoints[:idx]

	return nil
}

// RollbackToSavepoint rolls back to a savepoint. The savepoint itself survives
// and can be rolled back to again.
func (tx *TxManager) RollbackToSavepoint(ctx context.Context, name string) error {
	idx, found := tx.findSavepoint(name)
	if !found {
		return errors.Join(backend.ErrInvalidTransactionState, ErrSavepointNotFound)
	}

	if err := tx.exec(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdentifier(name)); err != nil {
		return err
	}

	tx.savepoints = tx.savepoints[:idx+1]

	return nil
}

// ActiveSavepoint returns the most recently created savepoint, if any.
func (tx *TxManager) ActiveSavepoint() string {
	if len(tx.savepoints) == 0 {
		return ""
	}

	return tx.savepoints[len(tx.savepoints)-1]
}

// DeferConstraint defers checking of a named deferrable constraint until commit.
func (tx *TxManager) DeferConstraint(ctx context.Context, constraintName string) error {
	if !tx.IsActive() {
		return errors.Join(
			backend.ErrInvalidTransactionState,
			errors.New("constraints can only be deferred inside an active transaction"),
		)
	}

	if err := tx.exec(ctx, "SET CONSTRAINTS "+quoteIdentifier(constraintName)+" DEFERRED"); err != nil {
		return err
	}

	tx.deferred = append(tx.deferred, constraintName)

	return nil
}

// DeferredConstraints returns the constraints deferred in the current transaction.
func (tx *TxManager) DeferredConstraints() []string {
	out := make([]string, len(tx.deferred))
	copy(out, tx.deferred)

	return out
}

// CurrentIsolationLevel asks the server for the isolation level in effect.
func (tx *TxManager) CurrentIsolationLevel(ctx context.Context) (backend.IsolationLevel, error) {
	rows, err := tx.session.Query(ctx, "SHOW transaction_isolation")
	if err != nil {
		return backend.LevelDefault, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return backend.LevelDefault, mapError(rowsErr)
		}

		return backend.LevelDefault, errors.Join(backend.ErrQueryFailed, errors.New("empty result for transaction_isolation"))
	}

	var level string
	if scanErr := rows.Scan(&level); scanErr != nil {
		return backend.LevelDefault, errors.Join(backend.ErrScanningDBRowFailed, scanErr)
	}

	return parseIsolationLevel(level)
}

// Execute runs a statement on the pinned connection inside the transaction.
// Positional args bind to $1..$n placeholders and are forwarded to the driver.
func (tx *TxManager) Execute(ctx context.Context, sqlQuery string, args ...any) (backend.QueryResult, error) {
	if returnsRows(sqlQuery) {
		return tx.runQuery(ctx, sqlQuery, args...)
	}

	result, err := tx.session.Exec(ctx, sqlQuery, args...)
	if err != nil {
		return backend.QueryResult{}, mapError(err)
	}

	affected, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return backend.QueryResult{}, errors.Join(backend.ErrGettingRowsAffectedFailed, affectedErr)
	}

	return backend.QueryResult{AffectedRows: affected}, nil
}

func (tx *TxManager) runQuery(ctx context.Context, sqlQuery string, args ...any) (backend.QueryResult, error) {
	rows, err := tx.session.Query(ctx, sqlQuery, args...)
	if err != nil {
		return backend.QueryResult{}, mapError(err)
	}
	defer func() { _ = rows.Close() }()

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

	return backend.QueryResult{Columns: columns, Rows: collected, AffectedRows: int64(len(collected))}, nil
}

// Close rolls back any active transaction and returns the pinned connection.
func (tx *TxManager) Close() error {
	var rollbackErr error

	if tx.IsActive() {
		rollbackErr = tx.exec(context.Background(), "ROLLBACK")
		tx.state = backend.TxRolledBack
		tx.nestingLevel = 0
	}

	releaseErr := tx.session.Release()

	return errors.Join(rollbackErr, releaseErr)
}

func (tx *TxManager) exec(ctx context.Context, stmt string) error {
	if _, err := tx.session.Exec(ctx, stmt); err != nil {
		mapped := mapError(err)

		if tx.logger != nil {
			tx.logger.Error(logMsgDBExecFailed, logAttrError, err.Error(), logAttrQuery, stmt)
		}

		return errors.Join(backend.ErrTransactionFailed, mapped)
	}

	if tx.logger != nil {
		tx.logger.Debug(logMsgSQLExecuted+logActionTransaction, logAttrQuery, stmt)
	}

	return nil
}

func (tx *TxManager) logOp(action string, args ...any) {
	if tx.logger != nil {
		tx.logger.Info(logMsgOperation+action, args...)
	}
}

func (tx *TxManager) autoSavepointName() string {
	return fmt.Sprintf("%s%d", savepointPrefix, tx.nestingLevel)
}

func (tx *TxManager) findSavepoint(name string) (int, bool) {
	for i := len(tx.savepoints) - 1; i >= 0; i-- {
		if tx.savepoints[i] == name {
			return i, true
		}
	}

	return 0, false
}

func parseIsolationLevel(level string) (backend.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "read uncommitted":
		return backend.LevelReadUncommitted, nil
	case "read committed":
		return backend.LevelReadCommitted, nil
	case "repeatable read":
		return backend.LevelRepeatableRead, nil
	case "serializable":
		return backend.LevelSerializable, nil
	default:
		return backend.LevelDefault, fmt.Errorf("unknown isolation level %q", level)
	}
}
