// SPDX-License-Identifier: MIT
package config

import (
	"beatlamp/internal/lamp"
	"beatlamp/internal/log"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// stateFile is the on-disk layout of the persisted lamp settings.
type stateFile struct {
	Brightness int `yaml:"brightness"`
	Red        int `yaml:"red"`
	Green      int `yaml:"green"`
	Blue       int `yaml:"blue"`
}

// StateStore keeps lamp settings in a YAML file. It implements
// lamp.Persister.
type StateStore struct {
	path string
}

var _ lamp.Persister = (*StateStore)(nil)

// NewStateStore returns a store backed by path. The file need not exist.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the backing file.
func (s *StateStore) Path() string {
	return s.path
}

// LoadState reads the settings. A missing file yields the defaults; keys
// absent from the file keep their default values.
func (s *StateStore) LoadState() (lamp.Settings, error) {
	def := lamp.DefaultSettings()
	st := stateFile{Brightness: def.Brightness, Red: def.Red, Green: def.Green, Blue: def.Blue}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("Config: no lamp state at %s, using defaults", s.path)
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to read lamp state: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return def, fmt.Errorf("failed to parse lamp state: %w", err)
	}

	return lamp.Settings{Brightness: st.Brightness, Red: st.Red, Green: st.Green, Blue: st.Blue}, nil
}

// SaveState writes the settings, replacing the file atomically.
func (s *StateStore) SaveState(settings lamp.Settings) error {
	data, err := yaml.Marshal(stateFile{
		Brightness: settings.Brightness,
		Red:        settings.Red,
		Green:      settings.Green,
		Blue:       settings.Blue,
	})
	if err != nil {
		return fmt.Errorf("failed to encode lamp state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".lamp_state-*")
	if err != nil {
		return fmt.Errorf("failed to write lamp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write lamp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write lamp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write lamp state: %w", err)
	}
	return nil
}

// Persist implements lamp.Persister.
func (s *StateStore) Persist(settings lamp.Settings) error {
	return s.SaveState(settings)
}
