package recording

import (
	"log/slog"
	"sync"

	"github.com/acolita/hydra-sh/internal/adapters/realclock"
	"github.com/acolita/hydra-sh/internal/adapters/realfs"
	"github.com/acolita/hydra-sh/internal/ports"
)

// Manager creates recorders in one directory and remembers the files it
// produced.
type Manager struct {
	dir   string
	term  string
	fs    ports.FileSystem
	clock ports.Clock

	mu    sync.Mutex
	paths []string
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem sets the filesystem recordings are written to.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithClock sets the clock used for event offsets.
func WithClock(clock ports.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// NewManager returns a manager writing to dir. term is stored in each header.
func NewManager(dir, term string, opts ...Option) *Manager {
	m := &Manager{
		dir:   dir,
		term:  term,
		fs:    realfs.New(),
		clock: realclock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a recording for a tab.
func (m *Manager) Open(tabID, title string, rows, cols int) (*Recorder, error) {
	r, err := NewRecorder(m.dir, Meta{TabID: tabID, Title: title, Term: m.term, Rows: rows, Cols: cols}, m.fs, m.clock)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.paths = append(m.paths, r.Path())
	m.mu.Unlock()

	slog.Debug("recording started", slog.String("tab_id", tabID), slog.String("path", r.Path()))
	return r, nil
}

// Paths returns the recordings created so far, oldest first.
func (m *Manager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}
