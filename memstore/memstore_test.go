package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/failure"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDuplicateUsernameIsLogical(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, &database.Account{Username: "alice", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	err := s.CreateAccount(ctx, &database.Account{Username: "alice", Password: "other"})
	if !failure.Is(err, failure.Logical) || !errors.Is(err, database.ErrDuplicate) {
		t.Fatalf("got %v, want logical duplicate", err)
	}

	got, err := s.GetAccountByUsername(ctx, "alice")
	if err != nil || got == nil || got.Password != "pw" {
		t.Fatalf("original account changed: %+v, %v", got, err)
	}
}

func TestUpdatePassword(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_ = s.CreateAccount(ctx, &database.Account{Username: "bob", Password: "old"})

	if err := s.UpdatePassword(ctx, "bob", "new"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetAccountByUsername(ctx, "bob")
	if got.Password != "new" {
		t.Errorf("password = %q", got.Password)
	}
	if err := s.UpdatePassword(ctx, "nobody", "x"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPetsAndCounts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	pets := []*database.Pet{
		{Name: "Old", Gender: "M", Age: 9, Breed: "Mutt", Contact: "c", CreatedAt: base},
		{Name: "New", Gender: "F", Age: 1, Breed: "Lab", Contact: "c", CreatedAt: base.Add(time.Hour),
			Status: database.PetStatusAdopted, Image: []byte("img")},
	}
	for _, p := range pets {
		if err := s.InsertPet(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.InsertPet(ctx, &database.Pet{Name: "Bad", Age: -2}); !failure.Is(err, failure.Logical) {
		t.Errorf("negative age: got %v", err)
	}

	list, err := s.ListPets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "New" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].Image != nil || !list[0].HasImage {
		t.Errorf("list entry image handling wrong: %+v", list[0])
	}

	full, _ := s.GetPet(ctx, pets[1].ID)
	if string(full.Image) != "img" {
		t.Errorf("image = %q", full.Image)
	}

	counts, _ := s.CountPetsByStatus(ctx)
	if counts[database.PetStatusAvailable] != 1 || counts[database.PetStatusAdopted] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestAppointmentsAndDonations(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	_ = s.InsertAppointment(ctx, &database.Appointment{PetName: "b", ScheduledAt: base.Add(2 * time.Hour)})
	_ = s.InsertAppointment(ctx, &database.Appointment{PetName: "a", ScheduledAt: base})
	list, _ := s.ListAppointments(ctx, time.Time{})
	if len(list) != 2 || list[0].PetName != "a" {
		t.Errorf("appointments = %+v", list)
	}
	later, _ := s.ListAppointments(ctx, base.Add(time.Hour))
	if len(later) != 1 {
		t.Errorf("filtered = %d, want 1", len(later))
	}

	_ = s.InsertDonation(ctx, &database.Donation{Donor: "x", AmountCents: 100})
	_ = s.InsertDonation(ctx, &database.Donation{Donor: "y", AmountCents: 250})
	if err := s.InsertDonation(ctx, &database.Donation{Donor: "z", AmountCents: -5}); !failure.Is(err, failure.Logical) {
		t.Errorf("negative donation: got %v", err)
	}
	total, _ := s.DonationTotal(ctx)
	if total != 350 {
		t.Errorf("total = %d", total)
	}
}

func TestOfflineAndLatency(t *testing.T) {
	s := newStore(t)
	s.SetOffline(true)
	_, err := s.ListPets(context.Background())
	if !failure.Is(err, failure.Connectivity) {
		t.Fatalf("offline: got %v", err)
	}

	s.SetOffline(false)
	s.SetLatency(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.ListPets(ctx)
	if !failure.Is(err, failure.Connectivity) {
		t.Fatalf("timeout: got %v", err)
	}
}
