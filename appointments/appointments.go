// Package appointments schedules vet visits.
package appointments

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/failure"
)

// Layout is the date/time format accepted by Schedule.
const Layout = "2006-01-02 15:04"

// Store is the persistence the appointments service needs.
type Store interface {
	InsertAppointment(ctx context.Context, a *database.Appointment) error
	ListAppointments(ctx context.Context, from time.Time) ([]database.Appointment, error)
}

// Request is the raw input of the scheduling form.
type Request struct {
	PetName string
	Owner   string
	Vet     string
	Reason  string
	When    string // Layout, local time
}

// Service schedules and lists appointments.
type Service struct {
	store  Store
	logger logrus.FieldLogger
	now    func() time.Time
	loc    *time.Location
}

// NewService creates a service over store. Times are read in the local zone.
func NewService(store Store, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:  store,
		logger: logger.WithField("component", "appointments"),
		now:    time.Now,
		loc:    time.Local,
	}
}

// Schedule validates r and stores the appointment. Times in the past are
// refused.
func (s *Service) Schedule(ctx context.Context, r Request) (database.Appointment, error) {
	a := database.Appointment{
		PetName: strings.TrimSpace(r.PetName),
		Owner:   strings.TrimSpace(r.Owner),
		Vet:     strings.TrimSpace(r.Vet),
		Reason:  strings.TrimSpace(r.Reason),
	}
	if a.PetName == "" || a.Owner == "" || a.Vet == "" {
		return database.Appointment{}, failure.Malformedf(nil, "Pet, owner and vet are required")
	}

	at, err := time.ParseInLocation(Layout, strings.TrimSpace(r.When), s.loc)
	if err != nil {
		return database.Appointment{}, failure.Malformedf(err, "Date must look like %s", Layout)
	}
	if !at.After(s.now()) {
		return database.Appointment{}, failure.Logicalf("Appointment time %s is in the past", at.Format(Layout))
	}
	a.ScheduledAt = at

	if err := s.store.InsertAppointment(ctx, &a); err != nil {
		return database.Appointment{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"appointment_id": a.ID,
		"at":             a.ScheduledAt.Format(time.RFC3339),
	}).Info("appointment scheduled")
	return a, nil
}

// Upcoming returns appointments from now on, soonest first.
func (s *Service) Upcoming(ctx context.Context) ([]database.Appointment, error) {
	return s.store.ListAppointments(ctx, s.now())
}

// Row renders a as table cells in the service's zone.
func (s *Service) Row(a database.Appointment) []string {
	return []string{a.ScheduledAt.In(s.loc).Format(Layout), a.PetName, a.Owner, a.Vet, a.Reason}
}
