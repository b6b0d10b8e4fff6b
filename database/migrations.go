package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type migration struct {
	version     int
	description string
	statements  []string
}

// migrations contains all database migrations in order
var migrations = []migration{
	{
		version:     1,
		description: "Initial schema with accounts and pets tables",
		statements:  accountsAndPetsSchema,
	},
	{
		version:     2,
		description: "Add appointments and donations tables",
		statements:  appointmentsAndDonationsSchema,
	},
}

// SchemaVersion returns the highest applied migration version, or 0.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := d.withConn(ctx, "read schema version", func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, d.dialect.ddl(schemaMigrationsTable)); err != nil {
			return err
		}
		return conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	})
	return version, err
}

// ApplyMigrations applies all pending database migrations and returns
// nothing when the schema is already current.
func (d *DB) ApplyMigrations(ctx context.Context) error {
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := d.withConn(ctx, fmt.Sprintf("apply migration %d", m.version), func(conn *sql.Conn) error {
			return d.runMigration(ctx, conn, m)
		}); err != nil {
			return err
		}
		d.logger.WithFields(logrus.Fields{
			"version":     m.version,
			"description": m.description,
		}).Info("applied migration")
	}
	return nil
}

func (d *DB) runMigration(ctx context.Context, conn *sql.Conn, m migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return newTxError("begin transaction", err)
	}
	defer tx.Rollback()

	for i, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, d.dialect.ddl(stmt)); err != nil {
			return newTxError(fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		d.q("INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)"),
		m.version, time.Now().UTC(), m.description,
	); err != nil {
		return newTxError("record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return newTxError("commit migration", err)
	}
	return nil
}
