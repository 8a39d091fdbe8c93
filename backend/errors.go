package backend

import (
	"errors"
)

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrBuildingQueryFailed = errors.New("failed to build sql query")
var ErrConnectionFailed = errors.New("database connection failed")
var ErrAuthenticationFailed = errors.New("authentication failed")
var ErrIntegrityViolation = errors.New("integrity constraint violation")
var ErrUniqueViolation = errors.New("unique constraint violation")
var ErrForeignKeyViolation = errors.New("foreign key constraint violation")
var ErrSerializationFailure = errors.New("serialization failure, the transaction should be retried")
var ErrDeadlockDetected = errors.New("deadlock detected, the transaction should be retried")
var ErrQueryFailed = errors.New("query execution failed")
var ErrStatementTimeout = errors.New("statement timed out or was canceled")
var ErrTransactionFailed = errors.New("transaction operation failed")
var ErrInvalidTransactionState = errors.New("operation is not valid in the current transaction state")
var ErrUnsupportedFeature = errors.New("feature is not supported by this server version")
var ErrScanningDBRowFailed = errors.New("failed to scan database row")
var ErrGettingRowsAffectedFailed = errors.New("failed to get rows affected count")
