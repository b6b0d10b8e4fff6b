package database

import (
	"context"
	"database/sql"
	"time"
)

// InsertAppointment stores a scheduled visit.
func (d *DB) InsertAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.ScheduledAt = a.ScheduledAt.UTC()

	err := d.withConn(ctx, "schedule appointment", func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, d.q(`
			INSERT INTO appointments (id, pet_name, owner, vet, reason, scheduled_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			a.ID, a.PetName, a.Owner, a.Vet, a.Reason, a.ScheduledAt, a.CreatedAt)
		return err
	})
	if err != nil {
		return err
	}
	d.logWrite("appointments", a.ID)
	return nil
}

// ListAppointments returns appointments scheduled at or after from, soonest
// first. A zero from returns all of them.
func (d *DB) ListAppointments(ctx context.Context, from time.Time) ([]Appointment, error) {
	var out []Appointment
	err := d.withConn(ctx, "load appointments", func(conn *sql.Conn) error {
		query := `SELECT id, pet_name, owner, vet, reason, scheduled_at, created_at FROM appointments`
		var args []any
		if !from.IsZero() {
			query += ` WHERE scheduled_at >= ?`
			args = append(args, from.UTC())
		}
		query += ` ORDER BY scheduled_at ASC, id ASC`

		rows, err := conn.QueryContext(ctx, d.q(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a Appointment
			var reason sql.NullString
			if err := rows.Scan(&a.ID, &a.PetName, &a.Owner, &a.Vet, &reason, &a.ScheduledAt, &a.CreatedAt); err != nil {
				return err
			}
			a.Reason = reason.String
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
