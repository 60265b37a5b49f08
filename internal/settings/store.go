// Package settings persists the operator's dashboard preferences in one
// local JSON file that is always read and written wholesale.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/scrypster/clawscope/internal/storage"
)

// Defaults returned before the first save.
const (
	DefaultSearchMode     = "hybrid"
	DefaultExtractionMode = "pattern"
)

// Preferences are the typed fields the server reads back. Any other keys
// the page stores are kept in the file untouched.
type Preferences struct {
	SearchMode     string `json:"searchMode"`
	ExtractionMode string `json:"extractionMode"`
}

// Store reads and replaces the settings file.
type Store struct {
	path string

	// mu only keeps a single process from interleaving its own writes.
	// Concurrent processes race and the last rename wins.
	mu sync.Mutex
}

// NewStore creates a store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the file has been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the stored JSON object, or the defaults when the file does
// not exist yet.
func (s *Store) Load() (json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultsJSON(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := validateObject(data); err != nil {
		return nil, fmt.Errorf("settings file %s: %w", s.path, err)
	}
	return json.RawMessage(data), nil
}

// Save replaces the file with body, which must be a JSON object. There is
// no merge with the previous content.
func (s *Store) Save(body []byte) error {
	if err := validateObject(body); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		tmp.Close()
		return fmt.Errorf("format settings: %w", err)
	}
	pretty.WriteByte('\n')

	if _, err := tmp.Write(pretty.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Preferences decodes the typed fields, filling blanks with defaults.
func (s *Store) Preferences() (Preferences, error) {
	raw, err := s.Load()
	if err != nil {
		return defaultPreferences(), err
	}
	p := defaultPreferences()
	if err := json.Unmarshal(raw, &p); err != nil {
		return defaultPreferences(), fmt.Errorf("decode settings: %w", err)
	}
	if p.SearchMode == "" {
		p.SearchMode = DefaultSearchMode
	}
	if p.ExtractionMode == "" {
		p.ExtractionMode = DefaultExtractionMode
	}
	return p, nil
}

func defaultPreferences() Preferences {
	return Preferences{SearchMode: DefaultSearchMode, ExtractionMode: DefaultExtractionMode}
}

func defaultsJSON() json.RawMessage {
	data, _ := json.Marshal(defaultPreferences())
	return data
}

func validateObject(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: settings must be a JSON object", storage.ErrInvalidInput)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	return nil
}
