// Package adapters provides database adapter implementations for the PostgreSQL backend.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, allowing the backend to work seamlessly with any supported
// database connection type.
//
// In addition to pool-level query execution, every adapter can pin a single connection
// via Acquire, which the transaction manager relies on to sequence BEGIN / SAVEPOINT /
// COMMIT statements on one session.
package adapters
