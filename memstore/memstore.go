// Package memstore is an in-memory stand-in for the relational store, built
// on go-memdb. It backs the --store memory demo mode and service tests and
// honours the same uniqueness and check rules as the SQL schema.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/failure"
)

const (
	tableAccounts     = "accounts"
	tablePets         = "pets"
	tableAppointments = "appointments"
	tableDonations    = "donations"
)

func schema() *memdb.DBSchema {
	byID := func() *memdb.IndexSchema {
		return &memdb.IndexSchema{
			Name:    "id",
			Unique:  true,
			Indexer: &memdb.StringFieldIndex{Field: "ID"},
		}
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableAccounts: {
				Name: tableAccounts,
				Indexes: map[string]*memdb.IndexSchema{
					"id": byID(),
					"username": {
						Name:    "username",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Username"},
					},
				},
			},
			tablePets: {
				Name: tablePets,
				Indexes: map[string]*memdb.IndexSchema{
					"id": byID(),
					"status": {
						Name:    "status",
						Indexer: &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
			tableAppointments: {
				Name:    tableAppointments,
				Indexes: map[string]*memdb.IndexSchema{"id": byID()},
			},
			tableDonations: {
				Name:    tableDonations,
				Indexes: map[string]*memdb.IndexSchema{"id": byID()},
			},
		},
	}
}

// Store holds all records in memory.
type Store struct {
	db      *memdb.MemDB
	offline atomic.Bool
	latency atomic.Int64
}

// New creates an empty store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	return &Store{db: db}, nil
}

// SetOffline makes every call fail as if the database were unreachable.
func (s *Store) SetOffline(offline bool) { s.offline.Store(offline) }

// SetLatency delays every call by d, honouring context cancellation.
func (s *Store) SetLatency(d time.Duration) { s.latency.Store(int64(d)) }

func (s *Store) check(ctx context.Context, op string) error {
	if d := time.Duration(s.latency.Load()); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return failure.Connectivityf(ctx.Err(), "%s timed out", op)
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return failure.Connectivityf(err, "%s timed out", op)
	}
	if s.offline.Load() {
		return failure.Connectivityf(fmt.Errorf("dial memstore: connection refused"), "%s failed", op)
	}
	return nil
}

func duplicate(op string) error {
	return failure.Wrap(failure.Logical, op+": "+database.ErrDuplicate.Error(), database.ErrDuplicate)
}

func integrity(op, detail string) error {
	return failure.Wrap(failure.Logical, op+": "+database.ErrIntegrity.Error(),
		fmt.Errorf("%s: %w", detail, database.ErrIntegrity))
}

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(ctx context.Context, a *database.Account) error {
	const op = "create account"
	if err := s.check(ctx, op); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableAccounts, "username", a.Username)
	if err != nil {
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	if existing != nil {
		return duplicate(op)
	}

	if a.ID == "" {
		a.ID = database.NewID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	row := *a
	if err := txn.Insert(tableAccounts, &row); err != nil {
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	txn.Commit()
	return nil
}

// GetAccountByUsername returns the account, or nil if none matches.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*database.Account, error) {
	const op = "look up account"
	if err := s.check(ctx, op); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	raw, err := txn.First(tableAccounts, "username", username)
	if err != nil {
		return nil, failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	if raw == nil {
		return nil, nil
	}
	a := *raw.(*database.Account)
	return &a, nil
}

// UpdatePassword replaces the stored password of username.
func (s *Store) UpdatePassword(ctx context.Context, username, password string) error {
	const op = "update password"
	if err := s.check(ctx, op); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableAccounts, "username", username)
	if err != nil {
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	if raw == nil {
		return failure.Wrap(failure.Logical, "Username not found", database.ErrNotFound)
	}
	updated := *raw.(*database.Account)
	updated.Password = password
	updated.UpdatedAt = time.Now().UTC()
	if err := txn.Insert(tableAccounts, &updated); err != nil {
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	txn.Commit()
	return nil
}

// InsertPet stores a new pet.
func (s *Store) InsertPet(ctx context.Context, p *database.Pet) error {
	const op = "insert pet"
	if err := s.check(ctx, op); err != nil {
		return err
	}
	if p.Age < 0 {
		return integrity(op, "age must not be negative")
	}
	if p.ID == "" {
		p.ID = database.NewID()
	}
	if p.Status == "" {
		p.Status = database.PetStatusAvailable
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.HasImage = len(p.Image) > 0

	txn := s.db.Txn(true)
	defer txn.Abort()
	if existing, _ := txn.First(tablePets, "id", p.ID); existing != nil {
		return duplicate(op)
	}
	row := *p
	row.Image = slices.Clone(p.Image)
	if err := txn.Insert(tablePets, &row); err != nil {
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	txn.Commit()
	return nil
}

// ListPets returns every pet, newest first, without image bytes.
func (s *Store) ListPets(ctx context.Context) ([]database.Pet, error) {
	const op = "load pets"
	if err := s.check(ctx, op); err != nil {
		return nil, err
	}
	it, err := s.db.Txn(false).Get(tablePets, "id")
	if err != nil {
		return nil, failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	var pets []database.Pet
	for raw := it.Next(); raw != nil; raw = it.Next() {
		p := *raw.(*database.Pet)
		p.Image = nil
		pets = append(pets, p)
	}
	slices.SortFunc(pets, func(a, b database.Pet) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return pets, nil
}

// GetPet returns one pet including its image, or nil.
func (s *Store) GetPet(ctx context.Context, id string) (*database.Pet, error) {
	const op = "load pet"
	if err := s.check(ctx, op); err != nil {
		return nil, err
	}
	raw, err := s.db.Txn(false).First(tablePets, "id", id)
	if err != nil {
		return nil, failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	if raw == nil {
		return nil, nil
	}
	p := *raw.(*database.Pet)
	p.Image = slices.Clone(p.Image)
	return &p, nil
}

// CountPetsByStatus returns the number of pets per status value.
func (s *Store) CountPetsByStatus(ctx context.Context) (map[string]int, error) {
	const op = "count pets"
	if err := s.check(ctx, op); err != nil {
		return nil, err
	}
	it, err := s.db.Txn(false).Get(tablePets, "status")
	if err != nil {
		return nil, failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	counts := make(map[string]int)
	for raw := it.Next(); raw != nil; raw = it.Next() {
		counts[raw.(*database.Pet).Status]++
	}
	return counts, nil
}

// InsertAppointment stores a scheduled visit.
func (s *Store) InsertAppointment(ctx context.Context, a *database.Appointment) error {
	const op = "schedule appointment"
	if err := s.check(ctx, op); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = database.NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.ScheduledAt = a.ScheduledAt.UTC()

	txn := s.db.Txn(true)
	defer txn.Abort()
	row := *a
	if err := txn.Insert(tableAppointments, &row); err != nil {
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	txn.Commit()
	return nil
}

// ListAppointments returns appointments at or after from, soonest first.
func (s *Store) ListAppointments(ctx context.Context, from time.Time) ([]database.Appointment, error) {
	const op = "load appointments"
	if err := s.check(ctx, op); err != nil {
		return nil, err
	}
	it, err := s.db.Txn(false).Get(tableAppointments, "id")
	if err != nil {
		return nil, failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	var out []database.Appointment
	for raw := it.Next(); raw != nil; raw = it.Next() {
		a := *raw.(*database.Appointment)
		if !from.IsZero() && a.ScheduledAt.Before(from) {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b database.Appointment) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// InsertDonation stores a donation.
func (s *Store) InsertDonation(ctx context.Context, d *database.Donation) error {
	const op = "record donation"
	if err := s.check(ctx, op); err != nil {
		return err
	}
	if d.AmountCents <= 0 {
		return integrity(op, "amount must be positive")
	}
	if d.ID == "" {
		d.ID = database.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	txn := s.db.Txn(true)
	defer txn.Abort()
	row := *d
	if err := txn.Insert(tableDonations, &row); err != nil {
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	txn.Commit()
	return nil
}

// ListDonations returns all donations, newest first.
func (s *Store) ListDonations(ctx context.Context) ([]database.Donation, error) {
	const op = "load donations"
	if err := s.check(ctx, op); err != nil {
		return nil, err
	}
	it, err := s.db.Txn(false).Get(tableDonations, "id")
	if err != nil {
		return nil, failure.Wrap(failure.Unexpected, op+" failed", err)
	}
	var out []database.Donation
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*database.Donation))
	}
	slices.SortFunc(out, func(a, b database.Donation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// DonationTotal returns the sum of all donations in cents.
func (s *Store) DonationTotal(ctx context.Context) (int64, error) {
	list, err := s.ListDonations(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, d := range list {
		total += d.AmountCents
	}
	return total, nil
}
