package profiles

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
	"github.com/OpenGG/spacetime-token/internal/tokens/storage"
)

// Profiles maps profile names to tokens.
type Profiles map[string]string

// Upsert stores token under name, replacing any previous value.
func (p Profiles) Upsert(name, token string) {
	p[name] = token
}

// InsertIfAbsent stores token under name unless name is already present.
func (p Profiles) InsertIfAbsent(name, token string) error {
	if _, exists := p[name]; exists {
		return fmt.Errorf("%w: '%s'", domain.ErrProfileExists, name)
	}
	p[name] = token
	return nil
}

// Remove deletes name and reports whether it was present.
func (p Profiles) Remove(name string) bool {
	if _, exists := p[name]; !exists {
		return false
	}
	delete(p, name)
	return true
}

// Lookup returns the token stored under name.
func (p Profiles) Lookup(name string) (string, bool) {
	token, ok := p[name]
	return token, ok
}

// Names returns all profile names sorted lexicographically.
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindByToken returns every profile name holding token, in Names order.
// The first element is the active profile when several share a token.
func (p Profiles) FindByToken(token string) []string {
	var matches []string
	for _, name := range p.Names() {
		if p[name] == token {
			matches = append(matches, name)
		}
	}
	return matches
}

// Store persists Profiles as a flat TOML document.
type Store struct {
	storage *storage.Storage
	path    string
	logger  *slog.Logger
}

// New creates a profile Store backed by the file at path.
func New(storage *storage.Storage, path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{storage: storage, path: path, logger: logger}
}

// Path returns the profiles file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the profiles file.
//
// A missing file is created empty and a whitespace-only file is treated as
// empty. Anything else must be a TOML table of string values, otherwise
// ErrProfilesCorrupt is returned naming the path.
func (s *Store) Load() (Profiles, error) {
	data, err := s.storage.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrProfilesIO, s.path, err)
		}
		if err := s.storage.WriteFileAtomic(s.path, nil); err != nil {
			return nil, fmt.Errorf("%w: create empty profiles file at %s: %w", domain.ErrProfilesIO, s.path, err)
		}
		s.logger.Info("created empty profiles file", "path", s.path)
		return Profiles{}, nil
	}

	if strings.TrimSpace(string(data)) == "" {
		return Profiles{}, nil
	}

	parsed := map[string]string{}
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s, ensure it is valid TOML or empty: %w", domain.ErrProfilesCorrupt, s.path, err)
	}
	return Profiles(parsed), nil
}

// Save rewrites the whole profiles file.
func (s *Store) Save(p Profiles) error {
	if p == nil {
		p = Profiles{}
	}
	data, err := toml.Marshal(map[string]string(p))
	if err != nil {
		return fmt.Errorf("%w: encode profiles: %w", domain.ErrProfilesIO, err)
	}
	if err := s.storage.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrProfilesIO, s.path, err)
	}
	s.logger.Debug("profiles saved", "path", s.path, "count", len(p))
	return nil
}

// Reset replaces the stored profiles with an empty set.
func (s *Store) Reset() error {
	if err := s.Save(Profiles{}); err != nil {
		return err
	}
	s.logger.Info("profiles reset", "path", s.path, "operation", "reset")
	return nil
}
