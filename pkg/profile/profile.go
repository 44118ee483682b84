// Package profile persists named bundles of critique defaults as JSON files.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileExt = ".json"

var (
	// ErrNotFound is returned when no profile file exists for a name.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidName rejects names that are empty or would leave the profiles directory.
	ErrInvalidName = errors.New("invalid profile name")
)

// Profile is a saved set of critique defaults.
type Profile struct {
	Name           string    `json:"-"`
	Models         ModelList `json:"models,omitempty"`
	DocType        string    `json:"doc_type,omitempty"`
	Focus          string    `json:"focus,omitempty"`
	Persona        string    `json:"persona,omitempty"`
	Context        []string  `json:"context,omitempty"`
	PreserveIntent bool      `json:"preserve_intent,omitempty"`
}

// ModelList decodes either a comma separated string or a JSON array and
// encodes as a comma separated string so older profiles stay readable.
type ModelList []string

func (m ModelList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(m, ","))
}

func (m *ModelList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch value := raw.(type) {
	case nil:
		*m = nil
	case string:
		*m = splitModels(value)
	case []any:
		models := make([]string, 0, len(value))
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("models entries must be strings, got %T", item)
			}
			models = append(models, s)
		}
		*m = splitModels(strings.Join(models, ","))
	default:
		return fmt.Errorf("models must be a string or a list, got %T", raw)
	}

	return nil
}

func (m ModelList) String() string {
	return strings.Join(m, ",")
}

func splitModels(input string) ModelList {
	out := make(ModelList, 0)
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Store reads and writes profiles under one directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	resolved, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: resolved}, nil
}

// Dir is the absolute profiles directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file a profile name maps to.
func (s *Store) Path(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.ContainsAny(trimmed, `/\`) || strings.HasPrefix(trimmed, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	path := filepath.Join(s.dir, trimmed+fileExt)
	if !isWithin(s.dir, path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path, nil
}

// Load reads one profile. Missing files yield ErrNotFound.
func (s *Store) Load(name string) (Profile, error) {
	path, err := s.Path(name)
	if err != nil {
		return Profile{}, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Profile{}, fmt.Errorf("%w: %q at %s", ErrNotFound, name, path)
		}
		return Profile{}, fmt.Errorf("read profile %q: %w", name, err)
	}

	var p Profile
	if err := json.Unmarshal(content, &p); err != nil {
		return Profile{}, fmt.Errorf("invalid JSON in profile %q: %w", name, err)
	}
	p.Name = strings.TrimSpace(name)

	return p, nil
}

// Save writes p and returns the file path.
func (s *Store) Save(p Profile) (string, error) {
	path, err := s.Path(p.Name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create profiles directory: %w", err)
	}

	content, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile %q: %w", p.Name, err)
	}

	if err := os.WriteFile(path, append(content, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write profile %q: %w", p.Name, err)
	}

	return path, nil
}

// Entry is one listed profile. Err is set when the file could not be parsed.
type Entry struct {
	Profile Profile
	Err     error
}

// List returns every profile sorted by name. A missing directory is empty.
func (s *Store) List() ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profiles directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(file.Name(), fileExt))
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		p, err := s.Load(name)
		if err != nil {
			p = Profile{Name: name}
		}
		entries = append(entries, Entry{Profile: p, Err: err})
	}

	return entries, nil
}
