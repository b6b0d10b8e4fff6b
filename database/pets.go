package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// InsertPet stores a new pet. ID, status and creation time are filled in
// when empty.
func (d *DB) InsertPet(ctx context.Context, p *Pet) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Status == "" {
		p.Status = PetStatusAvailable
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	var image any
	if len(p.Image) > 0 {
		image = p.Image
	}

	err := d.withConn(ctx, "insert pet", func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, d.q(`
			INSERT INTO pets (id, name, gender, age, breed, health, contact, traits, reason, image, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.Name, p.Gender, p.Age, p.Breed, p.Health, p.Contact,
			p.Traits, p.Reason, image, p.Status, p.CreatedAt)
		return err
	})
	if err != nil {
		return err
	}
	p.HasImage = image != nil
	d.logWrite("pets", p.ID)
	return nil
}

// ListPets returns every pet, newest first, without image bytes.
func (d *DB) ListPets(ctx context.Context) ([]Pet, error) {
	var pets []Pet
	err := d.withConn(ctx, "load pets", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, name, gender, age, breed, health, contact, traits, reason,
			       CASE WHEN image IS NULL THEN 0 ELSE 1 END, status, created_at
			FROM pets
			ORDER BY created_at DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				p        Pet
				hasImage int
				health   sql.NullString
				traits   sql.NullString
				reason   sql.NullString
			)
			if err := rows.Scan(&p.ID, &p.Name, &p.Gender, &p.Age, &p.Breed, &health, &p.Contact,
				&traits, &reason, &hasImage, &p.Status, &p.CreatedAt); err != nil {
				return err
			}
			p.Health, p.Traits, p.Reason = health.String, traits.String, reason.String
			p.HasImage = hasImage != 0
			pets = append(pets, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return pets, nil
}

// GetPet returns one pet including its image, or nil if it does not exist.
func (d *DB) GetPet(ctx context.Context, id string) (*Pet, error) {
	var pet *Pet
	err := d.withConn(ctx, "load pet", func(conn *sql.Conn) error {
		var (
			p      Pet
			health sql.NullString
			traits sql.NullString
			reason sql.NullString
		)
		err := conn.QueryRowContext(ctx, d.q(`
			SELECT id, name, gender, age, breed, health, contact, traits, reason, image, status, created_at
			FROM pets WHERE id = ?`), id).
			Scan(&p.ID, &p.Name, &p.Gender, &p.Age, &p.Breed, &health, &p.Contact,
				&traits, &reason, &p.Image, &p.Status, &p.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		p.Health, p.Traits, p.Reason = health.String, traits.String, reason.String
		p.HasImage = len(p.Image) > 0
		pet = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pet, nil
}

// CountPetsByStatus returns the number of pets per status value.
func (d *DB) CountPetsByStatus(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := d.withConn(ctx, "count pets", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM pets GROUP BY status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			counts[status] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
