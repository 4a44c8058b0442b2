package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/prompt"
	"github.com/acolita/hydra-sh/internal/ssh"
)

// ErrDuplicateTab is returned when a tab already has a session.
var ErrDuplicateTab = errors.New("tab already has a session")

// ErrManagerClosed is returned by Create after CloseAll.
var ErrManagerClosed = errors.New("session manager closed")

// RecorderFactory opens a recorder for a new tab. Returning an error disables
// recording for that tab only.
type RecorderFactory func(tabID string, cfg ssh.ConnectionConfig, rows, cols int) (Recorder, error)

// Manager owns the sessions of one client connection.
type Manager struct {
	connector Connector
	listener  Listener

	clock       ports.Clock
	quietWindow time.Duration
	detector    *prompt.Detector
	term        string
	recorders   RecorderFactory
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock sets the clock used by capture timers.
func WithManagerClock(clock ports.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithQuietWindow sets the capture debounce window.
func WithQuietWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.quietWindow = d
	}
}

// WithDetector sets the credential prompt detector shared by all tabs.
func WithDetector(d *prompt.Detector) ManagerOption {
	return func(m *Manager) {
		m.detector = d
	}
}

// WithTerm sets the TERM requested for every pty.
func WithTerm(term string) ManagerOption {
	return func(m *Manager) {
		m.term = term
	}
}

// WithRecorders enables per-tab output recording.
func WithRecorders(f RecorderFactory) ManagerOption {
	return func(m *Manager) {
		m.recorders = f
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager whose sessions connect through connector and
// report to listener.
func NewManager(connector Connector, listener Listener, opts ...ManagerOption) *Manager {
	m := &Manager{
		connector: connector,
		listener:  listener,
		sessions:  make(map[string]*Session),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a session for tabID. It fails only when the tab id is taken
// or the manager is closed; connection errors are reported to the listener.
func (m *Manager) Create(tabID string, cfg ssh.ConnectionConfig, rows, cols int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, ok := m.sessions[tabID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTab, tabID)
	}

	var rec Recorder
	if m.recorders != nil {
		r, err := m.recorders(tabID, cfg, rows, cols)
		if err != nil {
			m.logger.Warn("recording disabled for tab",
				slog.String("tab_id", tabID),
				slog.String("error", err.Error()))
		} else {
			rec = r
		}
	}

	sess := New(Options{
		TabID:       tabID,
		Config:      cfg,
		Rows:        rows,
		Cols:        cols,
		Term:        m.term,
		Connector:   m.connector,
		Listener:    m.listener,
		Recorder:    rec,
		Clock:       m.clock,
		QuietWindow: m.quietWindow,
		Detector:    m.detector,
		Logger:      m.logger,
	})
	m.sessions[tabID] = sess
	sess.Start()

	m.logger.Info("session opened",
		slog.String("tab_id", tabID),
		slog.String("host", cfg.Host),
		slog.Bool("jump", cfg.HasJump()))
	return sess, nil
}

// Get returns the session for tabID.
func (m *Manager) Get(tabID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[tabID]
	return sess, ok
}

// Write forwards input to tabID. Unknown tabs are ignored.
func (m *Manager) Write(tabID, data, lineHint string) error {
	sess, ok := m.Get(tabID)
	if !ok {
		return nil
	}
	return sess.Write(data, lineHint)
}

// Resize resizes tabID's pty. Unknown tabs are ignored.
func (m *Manager) Resize(tabID string, rows, cols int) error {
	sess, ok := m.Get(tabID)
	if !ok {
		return nil
	}
	return sess.Resize(rows, cols)
}

// Close closes and forgets tabID. Unknown tabs are ignored.
func (m *Manager) Close(tabID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[tabID]
	delete(m.sessions, tabID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	m.logger.Info("session closed", slog.String("tab_id", tabID))
	return sess.Close()
}

// Tabs returns the open tab ids, sorted.
func (m *Manager) Tabs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tabs := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		tabs = append(tabs, id)
	}
	sort.Strings(tabs)
	return tabs
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every session once and refuses new ones. Every session is
// closed even when others fail; the failures are joined.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for id, sess := range sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tab %s: %w", id, err))
		}
	}
	if len(sessions) > 0 {
		m.logger.Info("closed all sessions", slog.Int("count", len(sessions)))
	}
	return errors.Join(errs...)
}
