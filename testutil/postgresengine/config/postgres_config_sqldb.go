package config

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq" // postgres driver for database/sql
)

// PostgresSQLDB opens a sql.DB for the test database.
func PostgresSQLDB() *sql.DB {
	const defaultMaxOpenConns = 20
	const defaultMaxIdleConns = 2
	const defaultConnMaxLifetime = time.Hour

	db, err := sql.Open("postgres", PostgresTestDSN())
	if err != nil {
		log.Fatal("Failed to open sql.DB, error: ", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	return db
}
