// Package postgresengine provides the PostgreSQL implementation of the generic backend interface.
//
// This package renders the database-agnostic statement IR from the backend package into
// PostgreSQL-dialect SQL, supporting multiple database adapters (pgx, sql.DB, sqlx), and maps
// driver errors and wire values back onto the generic vocabulary.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Dialect rendering for RETURNING, ON CONFLICT, row locking, JSONB and array operators
//   - Version-gated capability descriptor driven by the detected server version
//   - Transaction manager with isolation levels, DEFERRABLE mode, savepoints and
//     deferred constraint checking
//   - Value adapters for JSONB, network address, UUID and decimal columns
//   - Dependency-free Logger, MetricsCollector and TracingCollector interfaces
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	be, _ := postgresengine.NewBackendFromPGXPool(db)
//
//	// With logging
//	be, _ := postgresengine.NewBackendFromPGXPool(
//		db,
//		postgresengine.WithLogger(logger),
//	)
//
//	result, _ := be.Execute(ctx, "SELECT * FROM users WHERE id = $1", 42)
//
//	tx, _ := be.Transaction(ctx)
//	_ = tx.Begin(ctx)
//	_ = tx.DeferConstraint(ctx, "orders_user_id_fkey")
//	_ = tx.Commit(ctx)
package postgresengine
