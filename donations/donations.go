// Package donations records gifts and reports totals.
package donations

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/failure"
)

// Store is the persistence the donations service needs.
type Store interface {
	InsertDonation(ctx context.Context, d *database.Donation) error
	ListDonations(ctx context.Context) ([]database.Donation, error)
	DonationTotal(ctx context.Context) (int64, error)
}

// Service records and lists donations.
type Service struct {
	store  Store
	logger logrus.FieldLogger
}

// NewService creates a service over store.
func NewService(store Store, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: store, logger: logger.WithField("component", "donations")}
}

// ParseAmount converts a decimal string such as "12.50" or "$7" into cents.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, failure.Malformedf(nil, "Amount is required")
	}
	if strings.HasPrefix(s, "-") {
		return 0, failure.Logicalf("Amount must be positive")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, failure.Malformedf(nil, "Amount %q must have at most two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, failure.Malformedf(err, "Amount %q is not a number", s)
	}
	cents, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, failure.Malformedf(err, "Amount %q is not a number", s)
	}
	if units > (math.MaxInt64-99)/100 {
		return 0, failure.Malformedf(nil, "Amount %q is too large", s)
	}
	return units*100 + int64(cents), nil
}

// FormatCents renders cents as "$12.50".
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}

// Record validates and stores a donation.
func (s *Service) Record(ctx context.Context, donor, amount, note string) (database.Donation, error) {
	d := database.Donation{
		Donor: strings.TrimSpace(donor),
		Note:  strings.TrimSpace(note),
	}
	if d.Donor == "" {
		return database.Donation{}, failure.Malformedf(nil, "Donor is required")
	}
	cents, err := ParseAmount(amount)
	if err != nil {
		return database.Donation{}, err
	}
	if cents <= 0 {
		return database.Donation{}, failure.Logicalf("Amount must be positive")
	}
	d.AmountCents = cents

	if err := s.store.InsertDonation(ctx, &d); err != nil {
		return database.Donation{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"donation_id":  d.ID,
		"amount_cents": d.AmountCents,
	}).Info("donation recorded")
	return d, nil
}

// List returns all donations, newest first.
func (s *Service) List(ctx context.Context) ([]database.Donation, error) {
	return s.store.ListDonations(ctx)
}

// Total returns the sum of all donations in cents.
func (s *Service) Total(ctx context.Context) (int64, error) {
	return s.store.DonationTotal(ctx)
}

// Row renders d as table cells.
func Row(d database.Donation) []string {
	return []string{d.CreatedAt.Local().Format("2006-01-02"), d.Donor, FormatCents(d.AmountCents), d.Note}
}
