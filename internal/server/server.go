// Package server exposes terminal sessions to browser clients over a
// websocket, plus a small REST surface for history, connection profiles and
// the audit assistant.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/adapters/realclock"
	"github.com/acolita/hydra-sh/internal/audit"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/acolita/hydra-sh/internal/prompt"
	"github.com/acolita/hydra-sh/internal/recording"
	"github.com/acolita/hydra-sh/internal/session"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// Auditor answers audit questions about captured history.
type Auditor interface {
	Analyze(ctx context.Context, req audit.Request) (string, error)
}

// Settings are the reloadable parts of the server configuration. They apply
// to clients that connect after the change.
type Settings struct {
	QuietWindow    time.Duration
	Term           string
	AllowedOrigins []string
}

// Options configures a Server. History and Connector are required.
type Options struct {
	History    *history.Store
	Profiles   *profiles.Store
	Auditor    Auditor
	Connector  session.Connector
	Recordings *recording.Manager
	Detector   *prompt.Detector
	Clock      ports.Clock
	Logger     *slog.Logger
	Settings   Settings
}

// Server serves the websocket event channel and the REST API.
type Server struct {
	history    *history.Store
	profiles   *profiles.Store
	auditor    Auditor
	connector  session.Connector
	recordings *recording.Manager
	detector   *prompt.Detector
	clock      ports.Clock
	logger     *slog.Logger

	mu       sync.Mutex
	settings Settings
	clients  map[*client]struct{}
}

// New returns a server.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = realclock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Detector == nil {
		opts.Detector = prompt.NewDetector()
	}
	return &Server{
		history:    opts.History,
		profiles:   opts.Profiles,
		auditor:    opts.Auditor,
		connector:  opts.Connector,
		recordings: opts.Recordings,
		detector:   opts.Detector,
		clock:      opts.Clock,
		logger:     opts.Logger,
		settings:   opts.Settings,
		clients:    make(map[*client]struct{}),
	}
}

// ApplySettings replaces the reloadable settings.
func (s *Server) ApplySettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.logger.Info("server settings updated",
		slog.Duration("quiet_window", settings.QuietWindow),
		slog.String("term", settings.Term))
}

// Settings returns the current settings.
func (s *Server) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/history", s.handleAllHistory)
		r.Get("/history/search", s.handleSearchHistory)
		r.Get("/history/{host}", s.handleHostHistory)

		r.Get("/connections", s.handleListConnections)
		r.Post("/connections", s.handleSaveConnection)
		r.Delete("/connections/{id}", s.handleDeleteConnection)

		r.Post("/audit", s.handleAudit)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and
// closes every client's sessions.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	settings := s.Settings()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: settings.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(readLimit)

	c := newClient(s, conn, settings)
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	c.serve()

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "server shutting down")
	}
}

// recorderFactory opens one recording per tab, or nil when recording is off.
func (s *Server) recorderFactory() session.RecorderFactory {
	if s.recordings == nil {
		return nil
	}
	return func(tabID string, cfg ssh.ConnectionConfig, rows, cols int) (session.Recorder, error) {
		rec, err := s.recordings.Open(tabID, cfg.DisplayName(), rows, cols)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
}
