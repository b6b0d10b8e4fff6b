package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pawtrack/pawtrack/failure"
)

// CreateAccount inserts a new account. ID and timestamps are filled in when
// empty. A taken username yields a Logical failure wrapping ErrDuplicate.
func (d *DB) CreateAccount(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	err := d.withConn(ctx, "create account", func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, d.q(`
			INSERT INTO accounts (id, username, password, full_name, email, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			a.ID, a.Username, a.Password, a.FullName, a.Email, a.CreatedAt, a.UpdatedAt)
		return err
	})
	if err != nil {
		return err
	}
	d.logWrite("accounts", a.ID)
	return nil
}

// GetAccountByUsername returns the account with the given username.
// Returns nil if no such account exists.
func (d *DB) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	var a *Account
	err := d.withConn(ctx, "look up account", func(conn *sql.Conn) error {
		var row Account
		err := conn.QueryRowContext(ctx, d.q(`
			SELECT id, username, password, full_name, email, created_at, updated_at
			FROM accounts WHERE username = ?`), username).
			Scan(&row.ID, &row.Username, &row.Password, &row.FullName, &row.Email, &row.CreatedAt, &row.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		a = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdatePassword replaces the stored password of username.
func (d *DB) UpdatePassword(ctx context.Context, username, password string) error {
	return d.withConn(ctx, "update password", func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, d.q(`
			UPDATE accounts SET password = ?, updated_at = ? WHERE username = ?`),
			password, time.Now().UTC(), username)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return failure.Wrap(failure.Logical, "Username not found", ErrNotFound)
		}
		d.logWrite("accounts", username)
		return nil
	})
}
