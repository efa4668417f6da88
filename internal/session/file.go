package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const fileVersion = 1

// sessionFile is the on-disk layout of a FileStore.
type sessionFile struct {
	Version int               `yaml:"version"`
	Values  map[string]string `yaml:"values,omitempty"`
}

// FileStore keeps values in a YAML file readable only by the current user.
// Every write replaces the file atomically.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	values map[string]string
}

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return "", false, err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	f.values[key] = value
	return f.save()
}

func (f *FileStore) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save()
}

// load reads the file once. A missing file is an empty store.
func (f *FileStore) load() error {
	if f.loaded {
		return nil
	}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.values = make(map[string]string)
		f.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var sf sessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}
	if sf.Version != fileVersion {
		return fmt.Errorf("unsupported session file version: %d (expected %d)", sf.Version, fileVersion)
	}
	if sf.Values == nil {
		sf.Values = make(map[string]string)
	}

	f.values = sf.Values
	f.loaded = true
	return nil
}

func (f *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := yaml.Marshal(&sessionFile{Version: fileVersion, Values: f.values})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	header := []byte("# fleetsync session. Holds a bearer token; do not share.\n\n")
	data = append(header, data...)

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary session file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}
