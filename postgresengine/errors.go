package postgresengine

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/ormkit/postgres-backend-go/backend"
)

// SQLSTATE codes the taxonomy distinguishes explicitly.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateUniqueViolation      = "23505"
	sqlstateForeignKeyViolation  = "23503"
	sqlstateQueryCanceled        = "57014"
	sqlstateInvalidAuthorization = "28000"
	sqlstateInvalidPassword      = "28P01"
)

// SQLSTATE class prefixes for coarse classification.
const (
	classConnectionException = "08"
	classIntegrityViolation  = "23"
	classTransactionRollback = "40"
	classInvalidTransaction  = "25"
	classSyntaxOrAccess      = "42"
)

// mapError classifies a driver error into the backend error taxonomy.
// The original driver error stays in the chain for inspection via errors.As.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(backend.ErrStatementTimeout, err)
	}

	if code, ok := sqlState(err); ok {
		if sentinel := sentinelForSQLState(code); sentinel != nil {
			return errors.Join(sentinel, err)
		}
	}

	return errors.Join(backend.ErrQueryFailed, err)
}

// sqlState extracts the SQLSTATE code from pgx and lib/pq driver errors.
func sqlState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}

	return "", false
}

//nolint:gocyclo // the SQLSTATE table is clearer as one switch
func sentinelForSQLState(code string) error {
	switch code {
	case sqlstateSerializationFailure:
		return backend.ErrSerializationFailure
	case sqlstateDeadlockDetected:
		return backend.ErrDeadlockDetected
	case sqlstateUniqueViolation:
		return backend.ErrUniqueViolation
	case sqlstateForeignKeyViolation:
		return backend.ErrForeignKeyViolation
	case sqlstateQueryCanceled:
		return backend.ErrStatementTimeout
	case sqlstateInvalidAuthorization, sqlstateInvalidPassword:
		return backend.ErrAuthenticationFailed
	}

	if len(code) < 2 {
		return nil
	}

	switch code[:2] {
	case classConnectionException:
		return backend.ErrConnectionFailed
	case classIntegrityViolation:
		return backend.ErrIntegrityViolation
	case classTransactionRollback:
		return backend.ErrTransactionFailed
	case classInvalidTransaction:
		return backend.ErrInvalidTransactionState
	case classSyntaxOrAccess:
		return backend.ErrQueryFailed
	}

	return nil
}

// IsRetryable reports whether the error is a transient concurrency failure
// that a caller may safely retry in a new transaction.
func IsRetryable(err error) bool {
	return errors.Is(err, backend.ErrSerializationFailure) ||
		errors.Is(err, backend.ErrDeadlockDetected)
}
