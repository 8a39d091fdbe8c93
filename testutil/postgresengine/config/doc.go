// Package config provides database connection settings for integration tests.
//
// The tests expect a local PostgreSQL reachable via the DSN returned by
// PostgresTestDSN, which can be overridden with the PGBACKEND_TEST_DSN
// environment variable.
package config
