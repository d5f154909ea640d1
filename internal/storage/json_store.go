package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/julianstephens/hydrate/internal/constants"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonFile struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

// JSONStore keeps all keys in one JSON file, rewritten atomically on every change.
type JSONStore struct {
	mu   sync.Mutex
	path string
	file *jsonFile
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{path: configPath}
}

func (s *JSONStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return s.read()
	}

	s.file = &jsonFile{Version: 1, Values: make(map[string]string)}
	return s.save()
}

func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *JSONStore) read() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	f := &jsonFile{}
	if err := json.Unmarshal(data, f); err != nil {
		backup := s.path + ".corrupt"
		_ = os.Rename(s.path, backup)
		return fmt.Errorf("corrupt storage file (moved to %s): %w", backup, err)
	}
	if f.Values == nil {
		f.Values = make(map[string]string)
	}
	s.file = f
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

// save writes to a temp file and renames it over the store.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace storage: %w", err)
	}
	return nil
}

func (s *JSONStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return "", ErrNotLoaded
	}
	v, ok := s.file.Values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *JSONStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrNotLoaded
	}
	prev, had := s.file.Values[key]
	s.file.Values[key] = value
	if err := s.save(); err != nil {
		if had {
			s.file.Values[key] = prev
		} else {
			delete(s.file.Values, key)
		}
		return err
	}
	return nil
}

func (s *JSONStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrNotLoaded
	}
	prev, had := s.file.Values[key]
	if !had {
		return nil
	}
	delete(s.file.Values, key)
	if err := s.save(); err != nil {
		s.file.Values[key] = prev
		return err
	}
	return nil
}
