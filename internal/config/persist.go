package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Persister stores settings across restarts.
type Persister interface {
	// Load returns the saved settings. ok is false when nothing has
	// been saved yet; that is not an error.
	Load() (s Settings, ok bool, err error)

	// Save persists s.
	Save(Settings) error
}

// FileStore persists settings as a JSON file, written atomically via a
// temp file so a power cut mid-save cannot corrupt the previous state.
type FileStore struct {
	path string
}

// NewFileStore persists to path, creating parent directories on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the settings file.
func (f *FileStore) Load() (Settings, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, false, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return s, true, nil
}

// Save writes the settings file.
func (f *FileStore) Save(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// MemStore is an in-memory Persister for tests.
type MemStore struct {
	Stored  *Settings
	Saves   int
	LoadErr error
	SaveErr error
}

// Load returns the stored settings, if any.
func (m *MemStore) Load() (Settings, bool, error) {
	if m.LoadErr != nil {
		return Settings{}, false, m.LoadErr
	}
	if m.Stored == nil {
		return Settings{}, false, nil
	}
	return *m.Stored, true, nil
}

// Save records the settings and counts the call.
func (m *MemStore) Save(s Settings) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	saved := s
	m.Stored = &saved
	m.Saves++
	return nil
}
