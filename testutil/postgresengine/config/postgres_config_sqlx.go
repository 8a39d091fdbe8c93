package config

import (
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for sqlx
)

// PostgresSQLX opens a sqlx.DB for the test database.
func PostgresSQLX() *sqlx.DB {
	const defaultMaxOpenConns = 20
	const defaultMaxIdleConns = 2
	const defaultConnMaxLifetime = time.Hour

	db, err := sqlx.Open("postgres", PostgresTestDSN())
	if err != nil {
		log.Fatal("Failed to open sqlx.DB, error: ", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	return db
}
