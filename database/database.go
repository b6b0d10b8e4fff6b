// Package database provides the relational store behind PawTrack: accounts,
// pets, vet appointments and donations.
//
// Three dialects are supported. SQLite (modernc.org/sqlite) is the default
// and needs nothing but a file path; MySQL and PostgreSQL are selected with
// Config.Driver and reached through a DSN.
//
// # Usage Example
//
//	db, err := database.New(ctx, database.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	acct, err := db.GetAccountByUsername(ctx, "alice")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if acct == nil {
//		log.Printf("no such account")
//	}
//
// # Connections
//
// Every repository call acquires its own *sql.Conn from the pool and gives
// it back before returning, on success and failure alike. No connection is
// shared between two calls in flight.
//
// # Errors
//
// Errors leaving this package are *failure.Error values. Driver errors are
// classified per dialect; see classify.go.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/failure"
)

// DB wraps the SQL database with the PawTrack repository methods.
type DB struct {
	db      *sql.DB
	dialect dialect
	target  string // redacted DSN, for diagnostic logging
	logger  logrus.FieldLogger
}

// Config holds database configuration.
type Config struct {
	// Driver selects the dialect: "sqlite", "mysql" or "postgres".
	Driver string

	// DSN is the data source name. For sqlite it is a file path.
	DSN string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection
	ConnMaxLifetime time.Duration

	// ConnectRetries bounds the ping attempts made by New. Zero pings once.
	ConnectRetries int

	// RetryInterval is the initial backoff between ping attempts.
	RetryInterval time.Duration

	// Logger for query diagnostics. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "pawtrack.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnectRetries:  3,
		RetryInterval:   500 * time.Millisecond,
	}
}

// New opens the database, waits for it to answer a ping and applies any
// pending migrations.
func New(ctx context.Context, cfg Config) (*DB, error) {
	d, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := d.ApplyMigrations(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Open is New without migrations.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	dia, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedInput, "invalid database configuration", err)
	}
	dsn, err := dia.prepareDSN(cfg.DSN)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedInput, "invalid database DSN", err)
	}

	db, err := sql.Open(dia.driverName, dsn)
	if err != nil {
		return nil, classify("open database", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	d := &DB{
		db:      db,
		dialect: dia,
		target:  redact(dia, cfg.DSN),
		logger: cfg.Logger.WithFields(logrus.Fields{
			"component": "database",
			"driver":    dia.name,
		}),
	}

	if err := d.connect(ctx, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// connect pings until the server answers or the retry budget runs out.
func (d *DB) connect(ctx context.Context, cfg Config) error {
	eb := backoff.NewExponentialBackOff()
	if cfg.RetryInterval > 0 {
		eb.InitialInterval = cfg.RetryInterval
	}
	retries := cfg.ConnectRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	err := backoff.RetryNotify(func() error {
		return d.db.PingContext(ctx)
	}, b, func(err error, next time.Duration) {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"target":   d.target,
			"retry_in": next.String(),
		}).Warn("database not reachable, retrying")
	})
	if err != nil {
		return classify("connect to database", err)
	}
	d.logger.WithField("target", d.target).Debug("database connected")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Driver returns the dialect name.
func (d *DB) Driver() string {
	return d.dialect.name
}

// Target returns the DSN with any password removed.
func (d *DB) Target() string {
	return d.target
}

// withConn runs fn on a dedicated connection and releases it afterwards.
// Errors returned by fn are classified under op.
func (d *DB) withConn(ctx context.Context, op string, fn func(conn *sql.Conn) error) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return classify(op, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			d.logger.WithError(cerr).WithField("op", op).Debug("releasing connection")
		}
	}()

	if err := fn(conn); err != nil {
		return classify(op, err)
	}
	return nil
}

// q rebinds a query written with ? placeholders for the active dialect.
func (d *DB) q(query string) string {
	return d.dialect.rebind(query)
}

func (d *DB) logWrite(table, id string) {
	d.logger.WithFields(logrus.Fields{
		"table": table,
		"id":    id,
	}).Debug("row written")
}

func newTxError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
