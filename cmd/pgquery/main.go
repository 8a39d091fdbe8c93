package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for database/sql and sqlx
	"github.com/spf13/cobra"

	"github.com/ormkit/postgres-backend-go/postgresengine"
)

const (
	envHost     = "POSTGRES_HOST"
	envPort     = "POSTGRES_PORT"
	envDatabase = "POSTGRES_DATABASE"
	envUser     = "POSTGRES_USER"
	envPassword = "POSTGRES_PASSWORD"

	driverPGX  = "pgx"
	driverSQL  = "sql"
	driverSQLX = "sqlx"
)

type cliOptions struct {
	host     string
	port     int
	database string
	user     string
	password string
	sslMode  string

	driver   string
	output   string
	file     string
	logLevel string
	timeout  time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCommand creates the pgquery command.
// Connection flags fall back to the POSTGRES_* environment variables.
func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "pgquery [sql]",
		Short: "Run SQL statements against a PostgreSQL server",
		Long: `Run SQL statements against a PostgreSQL server.

The statement is taken from the first argument, from --file, or from stdin.
Connection parameters fall back to the POSTGRES_HOST, POSTGRES_PORT,
POSTGRES_DATABASE, POSTGRES_USER and POSTGRES_PASSWORD environment
variables; flags take precedence.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host (env: "+envHost+")")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (env: "+envPort+")")
	cmd.Flags().StringVarP(&opts.database, "database", "d", "", "database name (env: "+envDatabase+")")
	cmd.Flags().StringVarP(&opts.user, "user", "U", "", "user name (env: "+envUser+")")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (env: "+envPassword+")")
	cmd.Flags().StringVar(&opts.sslMode, "sslmode", "prefer", "ssl mode (disable, allow, prefer, require, verify-ca, verify-full)")
	cmd.Flags().StringVar(&opts.driver, "driver", driverPGX, "database driver (pgx, sql, sqlx)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "output format (table, json, plain)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read the statement from a file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "statement timeout")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *cliOptions, args []string) error {
	applyEnvFallbacks(cmd, opts)

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}

	sqlQuery, err := readStatement(opts, args)
	if err != nil {
		return err
	}

	config := postgresengine.NewConfig(opts.host, opts.database, opts.user, opts.password)
	if opts.port != 0 {
		config.Port = opts.port
	}
	config.SSLMode = opts.sslMode
	config.ApplicationName = "pgquery"

	if err := config.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	backend, cleanup, err := connect(ctx, opts.driver, config, logger)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer cleanup()

	result, err := backend.Execute(ctx, sqlQuery)
	if err != nil {
		return err
	}

	return writeResult(os.Stdout, opts.output, result)
}

// applyEnvFallbacks fills connection options from the environment
// for every flag the user did not set explicitly.
func applyEnvFallbacks(cmd *cobra.Command, opts *cliOptions) {
	if !cmd.Flags().Changed("host") {
		if host := os.Getenv(envHost); host != "" {
			opts.host = host
		}
	}

	if !cmd.Flags().Changed("port") {
		if port := os.Getenv(envPort); port != "" {
			if parsed, err := strconv.Atoi(port); err == nil {
				opts.port = parsed
			}
		}
	}

	if !cmd.Flags().Changed("database") {
		if database := os.Getenv(envDatabase); database != "" {
			opts.database = database
		}
	}

	if !cmd.Flags().Changed("user") {
		if user := os.Getenv(envUser); user != "" {
			opts.user = user
		}
	}

	if !cmd.Flags().Changed("password") {
		if password := os.Getenv(envPassword); password != "" {
			opts.password = password
		}
	}
}

// readStatement resolves the SQL text from the argument, --file, or stdin.
func readStatement(opts *cliOptions, args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}

	if opts.file != "" {
		content, err := os.ReadFile(opts.file)
		if err != nil {
			return "", fmt.Errorf("failed to read statement file: %w", err)
		}

		return string(content), nil
	}

	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read statement from stdin: %w", err)
	}

	if len(content) == 0 {
		return "", fmt.Errorf("no statement given: pass it as an argument, via --file, or on stdin")
	}

	return string(content), nil
}

// connect opens a connection pool for the chosen driver and wraps it in a Backend.
func connect(
	ctx context.Context,
	driver string,
	config postgresengine.Config,
	logger postgresengine.Logger,
) (*postgresengine.Backend, func(), error) {

	switch driver {
	case driverPGX:
		poolConfig, err := config.PGXPoolConfig()
		if err != nil {
			return nil, nil, err
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, err
		}

		backend, err := postgresengine.NewBackendFromPGXPool(pool, postgresengine.WithLogger(logger))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return backend, pool.Close, nil

	case driverSQL:
		db, err := sql.Open("postgres", config.DSN())
		if err != nil {
			return nil, nil, err
		}

		backend, err := postgresengine.NewBackendFromSQLDB(db, postgresengine.WithLogger(logger))
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return backend, func() { _ = db.Close() }, nil

	case driverSQLX:
		db, err := sqlx.Open("postgres", config.DSN())
		if err != nil {
			return nil, nil, err
		}

		backend, err := postgresengine.NewBackendFromSQLX(db, postgresengine.WithLogger(logger))
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return backend, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown driver %q (expected pgx, sql or sqlx)", driver)
	}
}

// charmLogger adapts a charmbracelet logger to the backend's Logger interface.
type charmLogger struct {
	logger *log.Logger
}

func (l charmLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l charmLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l charmLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l charmLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func newLogger(level string) (postgresengine.Logger, error) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           parsed,
		ReportTimestamp: true,
	})

	return charmLogger{logger: logger}, nil
}
