package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/adapters/realclock"
	"github.com/acolita/hydra-sh/internal/capture"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/prompt"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/google/uuid"
)

const readBufferSize = 32 * 1024

// Inline banners written to the tab.
const (
	bannerJumpConnecting = "\r\n\x1b[33m>>> Connecting to jump host %s...\x1b[0m\r\n"
	bannerJumpReady      = "\r\n\x1b[32m>>> Jump host OK. Tunnel to %s...\x1b[0m\r\n"
	bannerConnected      = "\r\n\x1b[32m>>> Connected to %s\x1b[0m\r\n"
	bannerError          = "\r\n\x1b[31m%s: %v\x1b[0m\r\n"
)

// Options configures a Session.
type Options struct {
	TabID     string
	Config    ssh.ConnectionConfig
	Rows      int
	Cols      int
	Term      string
	Connector Connector
	Listener  Listener
	Recorder  Recorder

	Clock       ports.Clock
	QuietWindow time.Duration
	Detector    *prompt.Detector
	Logger      *slog.Logger
}

// Session is one terminal tab.
type Session struct {
	tabID     string
	cfg       ssh.ConnectionConfig
	term      string
	connector Connector
	listener  Listener
	recorder  Recorder
	tracker   *capture.Tracker
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	status    Status
	rows      int
	cols      int
	transport Transport
	shell     Shell
	started   bool
	closed    bool

	// writeMu keeps keystrokes in order across concurrent Write calls.
	writeMu     sync.Mutex
	releaseOnce sync.Once
	closeOnce   sync.Once
	closeErr    error
}

// New returns a session that has not started connecting.
func New(opts Options) *Session {
	if opts.Rows <= 0 {
		opts.Rows = 24
	}
	if opts.Cols <= 0 {
		opts.Cols = 80
	}
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}
	if opts.Clock == nil {
		opts.Clock = realclock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		tabID:     opts.TabID,
		cfg:       opts.Config,
		term:      opts.Term,
		connector: opts.Connector,
		listener:  opts.Listener,
		recorder:  opts.Recorder,
		logger:    opts.Logger.With(slog.String("tab_id", opts.TabID), slog.String("host", opts.Config.Host)),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusConnecting,
		rows:      opts.Rows,
		cols:      opts.Cols,
	}
	s.tracker = capture.NewTracker(capture.TrackerOptions{
		Clock:       opts.Clock,
		QuietWindow: opts.QuietWindow,
		Detector:    opts.Detector,
		Logger:      s.logger,
	}, s.onRecord)
	return s
}

// TabID returns the tab identifier.
func (s *Session) TabID() string { return s.tabID }

// Config returns the connection config the session was created with.
func (s *Session) Config() ssh.ConnectionConfig { return s.cfg }

// Status returns the connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Size returns the current pty dimensions.
func (s *Session) Size() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

// Done is closed when the connection goroutine has exited: the connection
// failed, the shell ended, or the session was closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start connects in the background. It returns immediately; progress and
// failures are reported to the listener. Calling Start twice is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

func (s *Session) run() {
	defer close(s.done)

	transport, err := s.connector.Connect(s.ctx, s.cfg, s.progress)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("connection failed", slog.String("error", err.Error()))
			s.emitData(errorBanner(err))
		}
		s.setStatus(StatusDisconnected)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		transport.Close()
		return
	}
	s.transport = transport
	rows, cols := s.rows, s.cols
	s.mu.Unlock()

	shell, err := transport.OpenShell(ssh.ShellOptions{
		Term:         s.term,
		Rows:         rows,
		Cols:         cols,
		ForwardAgent: s.cfg.UseAgent,
	})
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("shell request failed", slog.String("error", err.Error()))
			s.emitData(fmt.Sprintf(bannerError, "Shell error", err))
		}
		s.release()
		s.setStatus(StatusDisconnected)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		shell.Close()
		return
	}
	s.shell = shell
	// A resize that arrived while the pty was being requested.
	if s.rows != rows || s.cols != cols {
		if err := shell.Resize(s.rows, s.cols); err != nil {
			s.logger.Debug("resize failed", slog.String("error", err.Error()))
		}
	}
	s.mu.Unlock()

	s.readLoop(shell)

	// The shell ending ends the transport that carried it.
	s.release()
	s.setStatus(StatusDisconnected)
	s.logger.Info("shell closed")
}

func (s *Session) progress(stage ssh.Stage, cfg ssh.ConnectionConfig) {
	switch stage {
	case ssh.StageJumpConnecting:
		s.emitData(fmt.Sprintf(bannerJumpConnecting, cfg.Host))
	case ssh.StageJumpReady:
		s.emitData(fmt.Sprintf(bannerJumpReady, s.cfg.Host))
	case ssh.StageConnected:
		s.setStatus(StatusConnected)
		s.emitData(fmt.Sprintf(bannerConnected, cfg.Host))
	}
}

func (s *Session) readLoop(shell Shell) {
	buf := make([]byte, readBufferSize)
	var carry []byte
	for {
		n, err := shell.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			complete, rest := splitUTF8(data)
			if len(complete) > 0 {
				s.handleOutput(string(complete))
			}
			carry = append([]byte(nil), rest...)
		}
		if err != nil {
			if len(carry) > 0 {
				s.handleOutput(string(carry))
			}
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("shell read ended", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// handleOutput feeds capture before forwarding, so a listener that has seen
// a chunk knows capture has too.
func (s *Session) handleOutput(text string) {
	s.tracker.Output(text)
	s.listener.OnData(s.tabID, text)
	if s.recorder != nil {
		if err := s.recorder.Output(text); err != nil {
			s.logger.Debug("recording write failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Session) onRecord(rec capture.Record) {
	s.listener.OnCommand(s.tabID, history.Entry{
		ID:             uuid.NewString(),
		User:           s.cfg.AppUser,
		Cmd:            rec.Cmd,
		Output:         rec.Output,
		Duration:       rec.Duration.Milliseconds(),
		Timestamp:      rec.Timestamp.UTC(),
		Host:           s.cfg.Host,
		ConnectionName: s.cfg.DisplayName(),
		ExecutionType:  string(rec.ExecutionType),
	})
}

// Write sends keystrokes to the shell. lineHint is the client's rendering of
// the current line, or "". Input sent before the shell exists is dropped.
func (s *Session) Write(data, lineHint string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	shell, closed := s.shell, s.closed
	s.mu.Unlock()
	if closed || shell == nil {
		return nil
	}

	// Capture sees the carriage return before the shell can answer it.
	s.tracker.Input(data, lineHint)
	if _, err := io.WriteString(shell, data); err != nil {
		return fmt.Errorf("write to shell: %w", err)
	}
	return nil
}

// Resize records the new size and forwards it to the shell if one is open.
func (s *Session) Resize(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("invalid size %dx%d", rows, cols)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.rows, s.cols = rows, cols
	shell := s.shell
	s.mu.Unlock()

	if shell == nil {
		return nil
	}
	if err := shell.Resize(rows, cols); err != nil {
		return err
	}
	if s.recorder != nil {
		if err := s.recorder.Resize(rows, cols); err != nil {
			s.logger.Debug("recording resize failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Close tears the session down: pending capture is discarded, the shell and
// every transport are closed. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		shell := s.shell
		s.mu.Unlock()

		s.cancel()
		s.tracker.Close()

		var errs []error
		if shell != nil {
			if err := shell.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close shell: %w", err))
			}
		}
		if err := s.release(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
		if s.recorder != nil {
			if err := s.recorder.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close recording: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// release closes the transport at most once.
func (s *Session) release() error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return nil
	}

	var err error
	s.releaseOnce.Do(func() { err = t.Close() })
	return err
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.mu.Unlock()

	s.listener.OnStatus(s.tabID, status)
}

func (s *Session) emitData(data string) {
	s.listener.OnData(s.tabID, data)
}

func errorBanner(err error) string {
	var (
		tunnelErr  *ssh.TunnelError
		connErr    *ssh.ConnectionError
		timeoutErr *ssh.TimeoutError
	)
	label := "SSH error"
	switch {
	case errors.As(err, &tunnelErr):
		label = "Tunnel error"
	case errors.As(err, &connErr) && connErr.Hop == ssh.HopJump,
		errors.As(err, &timeoutErr) && timeoutErr.Hop == ssh.HopJump:
		label = "Jump host error"
	}
	return fmt.Sprintf(bannerError, label, err)
}
