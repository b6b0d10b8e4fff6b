// Package prefs persists small per-user preferences in a bbolt file: the last
// username that logged in successfully and whether the password field starts
// revealed.
package prefs

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("prefs")

const (
	keyLastUsername = "last_username"
	keyShowPassword = "show_password"
)

// Prefs is the full set of stored preferences.
type Prefs struct {
	LastUsername string
	ShowPassword bool
}

// Store is an open preferences file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the preferences file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise preferences: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads all preferences. Missing keys yield zero values.
func (s *Store) Load() (Prefs, error) {
	var p Prefs
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		p.LastUsername = string(b.Get([]byte(keyLastUsername)))
		p.ShowPassword = string(b.Get([]byte(keyShowPassword))) == "1"
		return nil
	})
	if err != nil {
		return Prefs{}, fmt.Errorf("failed to read preferences: %w", err)
	}
	return p, nil
}

// SetLastUsername records the last successful login.
func (s *Store) SetLastUsername(username string) error {
	return s.put(keyLastUsername, username)
}

// SetShowPassword records the password visibility preference.
func (s *Store) SetShowPassword(show bool) error {
	v := "0"
	if show {
		v = "1"
	}
	return s.put(keyShowPassword, v)
}

func (s *Store) put(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}
