package prefs

import (
	"path/filepath"
	"testing"
)

func TestPrefsPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if p != (Prefs{}) {
		t.Errorf("fresh file has prefs %+v", p)
	}
	if err := s.SetLastUsername("alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetShowPassword(true); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	p, err = s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if p.LastUsername != "alice" || !p.ShowPassword {
		t.Errorf("reopened prefs = %+v", p)
	}
}
