// Package account implements staff login, registration and password reset.
//
// Passwords are compared according to a PasswordMode. The legacy mode keeps
// the historic behaviour: plaintext storage and a case-insensitive match.
// The bcrypt mode stores new passwords as bcrypt hashes. Whatever the mode,
// a stored bcrypt hash is always verified with bcrypt and a stored plaintext
// value with the legacy comparison, so switching modes never locks anyone out.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/failure"
)

// Outcome is the result of a credential check.
type Outcome int

const (
	Success Outcome = iota
	WrongPassword
	WrongUsername
	DBError
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case WrongPassword:
		return "WRONG_PASSWORD"
	case WrongUsername:
		return "WRONG_USERNAME"
	case DBError:
		return "DB_ERROR"
	default:
		return "UNKNOWN"
	}
}

// User-facing messages.
const (
	MsgIncorrectPassword = "Incorrect password"
	MsgUsernameNotFound  = "Username not found"
	MsgUsernameTaken     = "Username already exists"
	MsgPasswordMismatch  = "Passwords do not match"
)

// PasswordMode selects how new passwords are stored.
type PasswordMode string

const (
	ModeLegacy PasswordMode = "legacy"
	ModeBcrypt PasswordMode = "bcrypt"
)

// ParsePasswordMode parses a --password-mode value.
func ParsePasswordMode(s string) (PasswordMode, error) {
	switch PasswordMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLegacy:
		return ModeLegacy, nil
	case ModeBcrypt:
		return ModeBcrypt, nil
	default:
		return "", fmt.Errorf("unknown password mode %q (want legacy or bcrypt)", s)
	}
}

// Store is the persistence the account service needs.
type Store interface {
	CreateAccount(ctx context.Context, a *database.Account) error
	GetAccountByUsername(ctx context.Context, username string) (*database.Account, error)
	UpdatePassword(ctx context.Context, username, password string) error
}

// Config configures a Service.
type Config struct {
	Mode PasswordMode

	// BcryptCost is used in bcrypt mode. Zero means bcrypt.DefaultCost.
	BcryptCost int

	// MinPasswordLength applies to registration and reset.
	MinPasswordLength int
}

// DefaultConfig returns the legacy-compatible configuration.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeLegacy,
		BcryptCost:        bcrypt.DefaultCost,
		MinPasswordLength: 4,
	}
}

// Service checks credentials and manages accounts.
type Service struct {
	store  Store
	cfg    Config
	logger logrus.FieldLogger
}

// NewService creates a service over store.
func NewService(store Store, cfg Config, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeLegacy
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.WithField("component", "account"),
	}
}

// Mode returns the configured password mode.
func (s *Service) Mode() PasswordMode { return s.cfg.Mode }

// LoginResult is the outcome of Login.
type LoginResult struct {
	Outcome  Outcome
	Username string

	// Message is shown to the user for every outcome but Success.
	Message string
}

// Login checks username and password against the store.
//
// A store failure yields Outcome DBError together with the classified error,
// so callers running Login as a background task see a failed result.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	res := LoginResult{Username: username}

	acct, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		res.Outcome = DBError
		res.Message = failure.UserMessage(err)
		s.logger.WithError(err).WithField("username", username).Warn("login lookup failed")
		return res, err
	}
	if acct == nil {
		res.Outcome = WrongUsername
		res.Message = MsgUsernameNotFound
		return res, nil
	}
	if !matches(acct.Password, password) {
		res.Outcome = WrongPassword
		res.Message = MsgIncorrectPassword
		return res, nil
	}

	res.Outcome = Success
	s.logger.WithField("username", username).Info("login succeeded")
	return res, nil
}

// Registration is the input of the registration form.
type Registration struct {
	Username string
	Password string
	Confirm  string
	FullName string
	Email    string
}

// Register validates r and creates the account.
func (s *Service) Register(ctx context.Context, r Registration) (*database.Account, error) {
	username := strings.TrimSpace(r.Username)
	if username == "" {
		return nil, failure.Malformedf(nil, "Username is required")
	}
	if err := s.validatePassword(r.Password, r.Confirm); err != nil {
		return nil, err
	}
	stored, err := s.encode(r.Password)
	if err != nil {
		return nil, err
	}

	acct := &database.Account{
		Username: username,
		Password: stored,
		FullName: strings.TrimSpace(r.FullName),
		Email:    strings.TrimSpace(r.Email),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, failure.Wrap(failure.Logical, MsgUsernameTaken, err)
		}
		return nil, err
	}
	s.logger.WithField("username", username).Info("account registered")
	return acct, nil
}

// LookupForReset confirms that username exists before a reset.
func (s *Service) LookupForReset(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", failure.Malformedf(nil, "Username is required")
	}
	acct, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", failure.Logicalf(MsgUsernameNotFound)
	}
	return acct.Username, nil
}

// ResetPassword replaces the password of username.
func (s *Service) ResetPassword(ctx context.Context, username, password, confirm string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return failure.Malformedf(nil, "Username is required")
	}
	if err := s.validatePassword(password, confirm); err != nil {
		return err
	}
	stored, err := s.encode(password)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, username, stored); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return failure.Wrap(failure.Logical, MsgUsernameNotFound, err)
		}
		return err
	}
	s.logger.WithField("username", username).Info("password reset")
	return nil
}

func (s *Service) validatePassword(password, confirm string) error {
	if password == "" {
		return failure.Malformedf(nil, "Password is required")
	}
	if len(password) < s.cfg.MinPasswordLength {
		return failure.Malformedf(nil, "Password must be at least %d characters", s.cfg.MinPasswordLength)
	}
	if password != confirm {
		return failure.Malformedf(nil, MsgPasswordMismatch)
	}
	return nil
}

// encode returns the value to store for password under the configured mode.
func (s *Service) encode(password string) (string, error) {
	if s.cfg.Mode != ModeBcrypt {
		return password, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", failure.Malformedf(err, "Password cannot be stored")
	}
	return string(hash), nil
}

func isBcryptHash(stored string) bool {
	return len(stored) == 60 && (strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$"))
}

// matches compares a supplied password with the stored value.
func matches(stored, supplied string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return strings.EqualFold(stored, supplied)
}
