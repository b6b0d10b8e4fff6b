package database

import (
	"context"
	"database/sql"
	"time"
)

// InsertDonation stores a donation. The amount must be positive; the
// database enforces it with a check constraint.
func (d *DB) InsertDonation(ctx context.Context, don *Donation) error {
	if don.ID == "" {
		don.ID = NewID()
	}
	if don.CreatedAt.IsZero() {
		don.CreatedAt = time.Now().UTC()
	}

	err := d.withConn(ctx, "record donation", func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, d.q(`
			INSERT INTO donations (id, donor, amount_cents, note, created_at)
			VALUES (?, ?, ?, ?, ?)`),
			don.ID, don.Donor, don.AmountCents, don.Note, don.CreatedAt)
		return err
	})
	if err != nil {
		return err
	}
	d.logWrite("donations", don.ID)
	return nil
}

// ListDonations returns all donations, newest first.
func (d *DB) ListDonations(ctx context.Context) ([]Donation, error) {
	var out []Donation
	err := d.withConn(ctx, "load donations", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, donor, amount_cents, note, created_at
			FROM donations
			ORDER BY created_at DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var don Donation
			var note sql.NullString
			if err := rows.Scan(&don.ID, &don.Donor, &don.AmountCents, &note, &don.CreatedAt); err != nil {
				return err
			}
			don.Note = note.String
			out = append(out, don)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DonationTotal returns the sum of all donations in cents.
func (d *DB) DonationTotal(ctx context.Context) (int64, error) {
	var total int64
	err := d.withConn(ctx, "sum donations", func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM donations`).Scan(&total)
	})
	return total, err
}
