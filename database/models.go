package database

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Account is a staff login.
type Account struct {
	ID        string
	Username  string
	Password  string // plaintext or bcrypt hash, depending on the account package mode
	FullName  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pet is one animal in the shelter.
type Pet struct {
	ID      string
	Name    string
	Gender  string
	Age     int
	Breed   string
	Health  string
	Contact string
	Traits  string
	Reason  string

	// Image holds the encoded photo. ListPets leaves it nil and only sets
	// HasImage; GetPet loads it.
	Image    []byte
	HasImage bool

	Status    string
	CreatedAt time.Time
}

// Appointment is a scheduled vet visit.
type Appointment struct {
	ID          string
	PetName     string
	Owner       string
	Vet         string
	Reason      string
	ScheduledAt time.Time
	CreatedAt   time.Time
}

// Donation is one recorded gift.
type Donation struct {
	ID          string
	Donor       string
	AmountCents int64
	Note        string
	CreatedAt   time.Time
}

// PetStatus constants
const (
	PetStatusAvailable = "available"
	PetStatusAdopted   = "adopted"
	PetStatusInFoster  = "in_foster"
	PetStatusUnknown   = "unknown"
)

// NewID returns a new lexically sortable record identifier.
func NewID() string {
	return ulid.Make().String()
}
