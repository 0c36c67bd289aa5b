// Package store is a JSON-file key-value settings store. It stands in for
// the process-wide settings capability the GUI shell would otherwise own:
// the token store persists credentials through it and the app persists the
// favorites list at shutdown.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Settings struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage
}

// Open loads settings from path. A missing file is not an error; the store
// starts empty and the file is created on the first Save.
func Open(path string) (*Settings, error) {
	s := &Settings{path: path, data: make(map[string]json.RawMessage)}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save writes the full settings map atomically: a temp file in the same
// directory is renamed over the target, so readers never observe a partial
// write.
func (s *Settings) Save() error {
	s.mu.Lock()
	b, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("temp settings: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func (s *Settings) set(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.data[key] = b
	s.mu.Unlock()
}

func (s *Settings) get(key string, out any) bool {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Path reports the backing file.
func (s *Settings) Path() string { return s.path }

func (s *Settings) SetString(key, v string) { s.set(key, v) }

func (s *Settings) GetString(key string) (string, bool) {
	var v string
	ok := s.get(key, &v)
	return v, ok
}

func (s *Settings) SetStrings(key string, v []string) { s.set(key, v) }

func (s *Settings) GetStrings(key string) ([]string, bool) {
	var v []string
	ok := s.get(key, &v)
	return v, ok
}

func (s *Settings) SetTime(key string, v time.Time) { s.set(key, v.Format(time.RFC3339)) }

func (s *Settings) GetTime(key string) (time.Time, bool) {
	var v string
	if !s.get(key, &v) {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
