// Package prefs persists the display preference across restarts.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Preferences is the persisted display preference.
type Preferences struct {
	IsDark bool `json:"isDark"`
}

// Store reads the preference file once at startup and rewrites it on every
// change.
type Store struct {
	mu      sync.RWMutex
	path    string
	current Preferences
}

// Open loads path. A missing or unreadable file yields light mode.
func Open(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		log.Printf("[Prefs] Failed to read %s: %v", path, err)
	default:
		if err := json.Unmarshal(data, &s.current); err != nil {
			log.Printf("[Prefs] Ignoring malformed %s: %v", path, err)
			s.current = Preferences{}
		}
	}

	return s
}

// Get returns the current preferences.
func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetDark updates the dark mode flag and writes it to disk.
func (s *Store) SetDark(isDark bool) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Preferences{IsDark: isDark}
	if err := s.write(next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// write replaces the file through a temp file in the same directory.
func (s *Store) write(p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}
