// Package file persists the controller configuration as a single blob file.
// Saves go through a temp file and rename so a crash mid-write leaves either
// the old blob or the new one, never a torn mix.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"sprinkler/internal/sprinkler"
	"sprinkler/internal/store"
)

// Store reads and writes the configuration blob at a fixed path.
type Store struct {
	path string
}

// New returns a store backed by the blob file at path. The file need not
// exist yet; the first Save creates it.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the blob file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(cfg *sprinkler.Config) error {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read config blob: %w", err)
	}
	if err := store.Decode(buf, cfg); err != nil {
		return fmt.Errorf("decode config blob %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Save(cfg *sprinkler.Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(store.Encode(cfg)); err != nil {
		tmp.Close()
		return fmt.Errorf("write config blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace config blob: %w", err)
	}
	return nil
}
