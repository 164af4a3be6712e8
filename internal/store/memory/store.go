// Package memory keeps the configuration blob in RAM. It backs tests and
// the daemon's volatile mode, and can inject load/save failures to exercise
// the controller's storage-fault paths.
package memory

import (
	"errors"
	"sync"

	"sprinkler/internal/sprinkler"
	"sprinkler/internal/store"
)

// ErrInjected is returned while failure injection is armed.
var ErrInjected = errors.New("injected storage failure")

// Store implements the persistence gateway in memory.
// Methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	blob      []byte
	failLoads bool
	failSaves bool
	saves     int
	attempts  int
	loads     int
}

// New returns an empty store. Loading before the first save fails, the same
// way a missing blob file does.
func New() *Store { return &Store{} }

// FailLoads arms or disarms load-failure injection.
func (s *Store) FailLoads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoads = fail
}

// FailSaves arms or disarms save-failure injection.
func (s *Store) FailSaves(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = fail
}

// Saves returns how many saves have succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// SaveAttempts returns how many saves have been attempted, failed included.
func (s *Store) SaveAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Loads returns how many loads have succeeded.
func (s *Store) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *Store) Load(cfg *sprinkler.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoads {
		return ErrInjected
	}
	if s.blob == nil {
		return errors.New("no configuration stored")
	}
	if err := store.Decode(s.blob, cfg); err != nil {
		return err
	}
	s.loads++
	return nil
}

func (s *Store) Save(cfg *sprinkler.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failSaves {
		return ErrInjected
	}
	s.blob = store.Encode(cfg)
	s.saves++
	return nil
}
