// Package pets holds the pet record, the adoption intake form and the
// gallery read model.
package pets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // registers the GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/iancoleman/strcase"
	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/failure"
)

// MaxImageBytes caps the size of an uploaded pet photo.
const MaxImageBytes = 5 << 20

// Status is the adoption status of a pet.
type Status string

const (
	StatusAvailable Status = database.PetStatusAvailable
	StatusAdopted   Status = database.PetStatusAdopted
	StatusInFoster  Status = database.PetStatusInFoster
	StatusUnknown   Status = database.PetStatusUnknown
)

// ParseStatus normalises free text ("In Foster", "in-foster", "InFoster")
// into a Status. Empty input means available; anything unrecognised is
// StatusUnknown.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusAvailable
	}
	switch st := Status(strcase.ToSnake(s)); st {
	case StatusAvailable, StatusAdopted, StatusInFoster:
		return st
	default:
		return StatusUnknown
	}
}

// Label is the display form, e.g. "In Foster".
func (s Status) Label() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusAdopted:
		return "Adopted"
	case StatusInFoster:
		return "In Foster"
	default:
		return "Unknown"
	}
}

// Store is the persistence the pets service needs.
type Store interface {
	InsertPet(ctx context.Context, p *database.Pet) error
	ListPets(ctx context.Context) ([]database.Pet, error)
	GetPet(ctx context.Context, id string) (*database.Pet, error)
	CountPetsByStatus(ctx context.Context) (map[string]int, error)
}

// Intake is the raw input of the adoption form.
type Intake struct {
	Name    string
	Gender  string
	Age     string
	Breed   string
	Health  string
	Contact string
	Traits  string
	Reason  string
	Status  string

	// ImagePath is an optional photo on disk. Image takes precedence when set.
	ImagePath string
	Image     []byte
}

// Summary is one gallery row.
type Summary struct {
	ID       string
	Name     string
	Gender   string
	Breed    string
	Age      int
	Status   Status
	HasImage bool
}

// Row renders s as table cells.
func (s Summary) Row() []string {
	img := ""
	if s.HasImage {
		img = "yes"
	}
	return []string{s.Name, s.Gender, s.Breed, strconv.Itoa(s.Age), s.Status.Label(), img}
}

// Service submits adoption intakes and reads the gallery.
type Service struct {
	store  Store
	logger logrus.FieldLogger
}

// NewService creates a service over store.
func NewService(store Store, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: store, logger: logger.WithField("component", "pets")}
}

// Validate checks in and returns the record to insert. It reads the image
// file, if any, so it belongs on a background goroutine.
func Validate(in Intake) (*database.Pet, error) {
	p := &database.Pet{
		Name:    strings.TrimSpace(in.Name),
		Gender:  strings.TrimSpace(in.Gender),
		Breed:   strings.TrimSpace(in.Breed),
		Health:  strings.TrimSpace(in.Health),
		Contact: strings.TrimSpace(in.Contact),
		Traits:  strings.TrimSpace(in.Traits),
		Reason:  strings.TrimSpace(in.Reason),
		Status:  string(ParseStatus(in.Status)),
	}

	var missing []string
	for _, f := range []struct{ label, value string }{
		{"name", p.Name},
		{"gender", p.Gender},
		{"breed", p.Breed},
		{"contact", p.Contact},
	} {
		if f.value == "" {
			missing = append(missing, f.label)
		}
	}
	if len(missing) > 0 {
		return nil, failure.Malformedf(nil, "Please fill in: %s", strings.Join(missing, ", "))
	}

	age, err := strconv.Atoi(strings.TrimSpace(in.Age))
	if err != nil {
		return nil, failure.Malformedf(err, "Age must be a whole number")
	}
	if age < 0 {
		return nil, failure.Malformedf(nil, "Age must not be negative")
	}
	p.Age = age

	img := in.Image
	if len(img) == 0 && strings.TrimSpace(in.ImagePath) != "" {
		img, err = readImage(strings.TrimSpace(in.ImagePath))
		if err != nil {
			return nil, err
		}
	}
	if len(img) > 0 {
		if err := checkImage(img); err != nil {
			return nil, err
		}
		p.Image = img
	}
	return p, nil
}

func readImage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.Malformedf(err, "Cannot open image %s", path)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, failure.Malformedf(err, "Cannot read image %s", path)
	}
	return data, nil
}

// checkImage rejects oversized or undecodable photos.
func checkImage(data []byte) error {
	if len(data) > MaxImageBytes {
		return failure.Malformedf(nil, "Image is larger than %d MiB", MaxImageBytes>>20)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return failure.Malformedf(err, "Image must be a PNG, JPEG or GIF")
	}
	return nil
}

// Submit validates an adoption intake and stores it.
func (s *Service) Submit(ctx context.Context, in Intake) (database.Pet, error) {
	p, err := Validate(in)
	if err != nil {
		return database.Pet{}, err
	}
	if err := s.store.InsertPet(ctx, p); err != nil {
		return database.Pet{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"pet_id": p.ID,
		"name":   p.Name,
		"image":  len(p.Image),
	}).Info("adoption intake stored")
	return *p, nil
}

// Gallery loads every pet as an immutable list of summaries.
func (s *Service) Gallery(ctx context.Context) (*immutable.List[Summary], error) {
	rows, err := s.store.ListPets(ctx)
	if err != nil {
		return nil, err
	}
	b := immutable.NewListBuilder[Summary]()
	for _, r := range rows {
		b.Append(Summary{
			ID:       r.ID,
			Name:     r.Name,
			Gender:   r.Gender,
			Breed:    r.Breed,
			Age:      r.Age,
			Status:   ParseStatus(r.Status),
			HasImage: r.HasImage,
		})
	}
	return b.List(), nil
}

// Get loads one pet including its image.
func (s *Service) Get(ctx context.Context, id string) (*database.Pet, error) {
	p, err := s.store.GetPet(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, failure.Logicalf("Pet %s not found", id)
	}
	return p, nil
}

// Counts returns the number of pets per status.
func (s *Service) Counts(ctx context.Context) (map[Status]int, error) {
	raw, err := s.store.CountPetsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Status]int, len(raw))
	for k, v := range raw {
		out[ParseStatus(k)] += v
	}
	return out, nil
}

// Describe renders a one-line description of p for the details modal.
func Describe(p database.Pet) string {
	return fmt.Sprintf("%s (%s, %d, %s) %s", p.Name, p.Breed, p.Age, p.Gender, ParseStatus(p.Status).Label())
}
