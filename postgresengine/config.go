package postgresengine

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultPort           = 5432
	DefaultSSLMode        = "prefer"
	DefaultConnectTimeout = 10 * time.Second
)

var (
	ErrMissingHost               = errors.New("config: host must not be empty")
	ErrMissingDatabase           = errors.New("config: database must not be empty")
	ErrInvalidPort               = errors.New("config: port must be between 1 and 65535")
	ErrInvalidSSLMode            = errors.New("config: invalid sslmode")
	ErrInvalidTargetSessionAttrs = errors.New("config: invalid target_session_attrs")
)

var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

var validTargetSessionAttrs = map[string]struct{}{
	"any":            {},
	"primary":        {},
	"standby":        {},
	"prefer-standby": {},
	"read-write":     {},
	"read-only":      {},
}

// Config describes a PostgreSQL connection in driver-neutral form.
// DSN renders it as a postgres:// URL accepted by pgx, lib/pq and sqlx alike.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string

	ApplicationName    string
	ConnectTimeout     time.Duration
	TargetSessionAttrs string
	ClientEncoding     string
	ChannelBinding     string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Options carries additional connection parameters verbatim.
	Options map[string]string
}

// NewConfig creates a config with the default port, ssl mode and connect timeout.
func NewConfig(host, database, user, password string) Config {
	return Config{
		Host:           host,
		Port:           DefaultPort,
		Database:       database,
		User:           user,
		Password:       password,
		SSLMode:        DefaultSSLMode,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Validate checks the config for values no driver would accept.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}

	if c.Database == "" {
		return ErrMissingDatabase
	}

	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}

	if c.SSLMode != "" {
		if _, ok := validSSLModes[c.SSLMode]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidSSLMode, c.SSLMode)
		}
	}

	if c.TargetSessionAttrs != "" {
		if _, ok := validTargetSessionAttrs[c.TargetSessionAttrs]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidTargetSessionAttrs, c.TargetSessionAttrs)
		}
	}

	return nil
}

// DSN renders the config as a postgres:// connection URL.
// The well-known parameters render in a fixed order, extra options sorted by key.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}

	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}

	query := url.Values{}

	if c.SSLMode != "" {
		query.Set("sslmode", c.SSLMode)
	}

	if c.SSLCert != "" {
		query.Set("sslcert", c.SSLCert)
	}

	if c.SSLKey != "" {
		query.Set("sslkey", c.SSLKey)
	}

	if c.SSLRootCert != "" {
		query.Set("sslrootcert", c.SSLRootCert)
	}

	if c.ApplicationName != "" {
		query.Set("application_name", c.ApplicationName)
	}

	if c.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}

	if c.TargetSessionAttrs != "" {
		query.Set("target_session_attrs", c.TargetSessionAttrs)
	}

	if c.ClientEncoding != "" {
		query.Set("client_encoding", c.ClientEncoding)
	}

	if c.ChannelBinding != "" {
		query.Set("channel_binding", c.ChannelBinding)
	}

	extraKeys := make([]string, 0, len(c.Options))
	for key := range c.Options {
		extraKeys = append(extraKeys, key)
	}
	sort.Strings(extraKeys)

	for _, key := range extraKeys {
		query.Set(key, c.Options[key])
	}

	u.RawQuery = query.Encode()

	return u.String()
}

// PGXPoolConfig parses the DSN into a pgxpool config and applies the pool limits.
func (c Config) PGXPoolConfig() (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, err
	}

	if c.MaxConns > 0 {
		poolConfig.MaxConns = c.MaxConns
	}

	if c.MinConns > 0 {
		poolConfig.MinConns = c.MinConns
	}

	if c.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = c.MaxConnLifetime
	}

	if c.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = c.MaxConnIdleTime
	}

	return poolConfig, nil
}
