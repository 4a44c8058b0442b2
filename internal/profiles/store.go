// Package profiles persists named connection profiles in a YAML file.
package profiles

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/acolita/hydra-sh/internal/adapters/realfs"
	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no profile matches.
var ErrNotFound = errors.New("connection profile not found")

// ErrNameTaken is returned by Add when another profile already uses the name.
var ErrNameTaken = errors.New("connection profile name already used")

// ErrReadOnly is returned by every write when the profiles file exists but
// could not be loaded. Writing would replace the operator's file.
var ErrReadOnly = errors.New("connection profiles file could not be loaded, refusing to overwrite it")

type document struct {
	Connections []ssh.ConnectionConfig `yaml:"connections"`
}

// Store keeps connection profiles in memory and writes every change back to
// its file.
type Store struct {
	path     string
	fs       ports.FileSystem
	newID    func() string
	mu       sync.RWMutex
	profiles map[string]ssh.ConnectionConfig
	loadErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithFileSystem sets the filesystem used by the store.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithIDGenerator replaces uuid generation for new profiles.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) {
		s.newID = f
	}
}

// Open loads the profiles at path. A missing file is an empty store. An
// unreadable or corrupt one leaves the store empty and read-only so the
// gateway still starts; Err reports why.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		fs:       realfs.New(),
		newID:    uuid.NewString,
		profiles: make(map[string]ssh.ConnectionConfig),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loadErr = s.load()
	return s
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Err returns the error that made the store read-only, or nil.
func (s *Store) Err() error { return s.loadErr }

// List returns every profile sorted by name, then id.
func (s *Store) List() []ssh.ConnectionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Get returns the profile with id.
func (s *Store) Get(id string) (ssh.ConnectionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return ssh.ConnectionConfig{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// Find returns the profile whose id or name equals ref.
func (s *Store) Find(ref string) (ssh.ConnectionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.profiles[ref]; ok {
		return p, nil
	}
	for _, p := range s.sortedLocked() {
		if p.Name == ref {
			return p, nil
		}
	}
	return ssh.ConnectionConfig{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Save inserts or replaces cfg by id, assigning an id when it has none.
// The operator name is never stored.
func (s *Store) Save(cfg ssh.ConnectionConfig) (ssh.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

// Add saves a new profile, refusing a name another profile already uses.
func (s *Store) Add(cfg ssh.ConnectionConfig) (ssh.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.profiles {
		if cfg.Name != "" && p.Name == cfg.Name && id != cfg.ID {
			return ssh.ConnectionConfig{}, fmt.Errorf("%w: %s", ErrNameTaken, cfg.Name)
		}
	}
	return s.saveLocked(cfg)
}

func (s *Store) saveLocked(cfg ssh.ConnectionConfig) (ssh.ConnectionConfig, error) {
	if cfg.ID == "" {
		cfg.ID = s.newID()
	}
	cfg.AppUser = ""

	prev, existed := s.profiles[cfg.ID]
	s.profiles[cfg.ID] = cfg
	if err := s.persistLocked(); err != nil {
		if existed {
			s.profiles[cfg.ID] = prev
		} else {
			delete(s.profiles, cfg.ID)
		}
		return ssh.ConnectionConfig{}, err
	}
	return cfg, nil
}

// Delete removes the profile with id. Deleting an unknown id is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.profiles[id]
	if !ok {
		return nil
	}
	delete(s.profiles, id)
	if err := s.persistLocked(); err != nil {
		s.profiles[id] = prev
		return err
	}
	return nil
}

// JumpHosts returns the names of profiles flagged as jump hosts.
func (s *Store) JumpHosts() []string {
	var names []string
	for _, p := range s.List() {
		if p.IsJump && p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}

func (s *Store) sortedLocked() []ssh.ConnectionConfig {
	out := make([]ssh.ConnectionConfig, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) load() error {
	data, err := s.fs.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		slog.Warn("failed to load connection profiles, changes will not be saved",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return fmt.Errorf("read profiles: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Warn("failed to parse connection profiles, changes will not be saved",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return fmt.Errorf("parse profiles: %w", err)
	}
	for _, p := range doc.Connections {
		if p.ID == "" {
			p.ID = s.newID()
		}
		s.profiles[p.ID] = p
	}
	return nil
}

// persistLocked writes to a temporary file and renames it over the store so
// a crash never leaves a truncated file.
func (s *Store) persistLocked() error {
	if s.loadErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrReadOnly, s.path, s.loadErr)
	}
	data, err := yaml.Marshal(document{Connections: s.sortedLocked()})
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create profiles directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := s.fs.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		if rmErr := s.fs.Remove(tmp); rmErr != nil {
			slog.Debug("remove temporary profiles file", slog.String("error", rmErr.Error()))
		}
		return fmt.Errorf("replace profiles: %w", err)
	}
	return nil
}
