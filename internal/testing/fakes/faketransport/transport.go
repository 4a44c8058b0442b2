// Package faketransport provides in-memory session transports for testing.
package faketransport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/acolita/hydra-sh/internal/session"
	"github.com/acolita/hydra-sh/internal/ssh"
)

// Connector implements session.Connector. Each Connect creates a Transport
// with one hop, or two when the config has a jump host.
type Connector struct {
	mu         sync.Mutex
	err        error
	hostErrs   map[string]error
	shellErr   error
	gate       chan struct{}
	calls      []ssh.ConnectionConfig
	transports []*Transport
}

// New returns a connector that succeeds.
func New() *Connector {
	return &Connector{}
}

// FailWith makes later Connect calls fail with err after reporting the
// stages a real connector reaches before failing.
func (c *Connector) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// FailHost makes later Connect calls to host fail with err.
func (c *Connector) FailHost(host string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hostErrs == nil {
		c.hostErrs = make(map[string]error)
	}
	c.hostErrs[host] = err
}

// FailShell makes OpenShell fail on later transports.
func (c *Connector) FailShell(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shellErr = err
}

// Hold blocks later Connect calls until release is called or their context
// ends.
func (c *Connector) Hold() (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gate := make(chan struct{})
	c.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Connect implements session.Connector.
func (c *Connector) Connect(ctx context.Context, cfg ssh.ConnectionConfig, progress ssh.Progress) (session.Transport, error) {
	c.mu.Lock()
	c.calls = append(c.calls, cfg)
	err, shellErr, gate := c.err, c.shellErr, c.gate
	if hostErr, ok := c.hostErrs[cfg.Host]; ok {
		err = hostErr
	}
	c.mu.Unlock()

	if progress == nil {
		progress = func(ssh.Stage, ssh.ConnectionConfig) {}
	}

	if cfg.HasJump() {
		progress(ssh.StageJumpConnecting, *cfg.JumpConfig)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if cfg.HasJump() {
		progress(ssh.StageJumpReady, *cfg.JumpConfig)
	}
	progress(ssh.StageConnecting, cfg)

	t := &Transport{hops: 1, shellErr: shellErr}
	if cfg.HasJump() {
		t.hops = 2
	}
	c.mu.Lock()
	c.transports = append(c.transports, t)
	c.mu.Unlock()

	progress(ssh.StageConnected, cfg)
	return t, nil
}

// Calls returns the configs passed to Connect.
func (c *Connector) Calls() []ssh.ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ssh.ConnectionConfig(nil), c.calls...)
}

// Transports returns the transports created so far.
func (c *Connector) Transports() []*Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Transport(nil), c.transports...)
}

// Transport implements session.Transport.
type Transport struct {
	mu       sync.Mutex
	hops     int
	closes   int
	shellErr error
	shell    *Shell
	opts     ssh.ShellOptions
}

// OpenShell implements session.Transport.
func (t *Transport) OpenShell(opts ssh.ShellOptions) (session.Shell, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closes > 0 {
		return nil, errors.New("transport closed")
	}
	if t.shellErr != nil {
		return nil, t.shellErr
	}
	t.opts = opts
	t.shell = newShell()
	return t.shell, nil
}

// Close implements session.Transport. Closing the transport ends its shell.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closes++
	shell := t.shell
	t.mu.Unlock()

	if shell != nil {
		shell.End()
	}
	return nil
}

// Hops returns 1 for a direct transport and 2 through a jump host.
func (t *Transport) Hops() int { return t.hops }

// Closes returns how many times Close was called.
func (t *Transport) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// Shell returns the opened shell, or nil.
func (t *Transport) Shell() *Shell {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shell
}

// ShellOptions returns the options passed to OpenShell.
func (t *Transport) ShellOptions() ssh.ShellOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

// Shell implements session.Shell over an in-memory pipe.
type Shell struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	input   bytes.Buffer
	resizes [][2]int
	closes  int
}

func newShell() *Shell {
	pr, pw := io.Pipe()
	return &Shell{pr: pr, pw: pw}
}

// Read implements io.Reader.
func (s *Shell) Read(b []byte) (int, error) {
	return s.pr.Read(b)
}

// Write records typed input.
func (s *Shell) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return 0, io.ErrClosedPipe
	}
	return s.input.Write(b)
}

// Resize records the size.
func (s *Shell) Resize(rows, cols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizes = append(s.resizes, [2]int{rows, cols})
	return nil
}

// Close ends the output stream.
func (s *Shell) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return s.pw.Close()
}

// Emit sends output to the reader. It blocks until the bytes are read.
func (s *Shell) Emit(data string) error {
	_, err := io.WriteString(s.pw, data)
	return err
}

// End simulates the remote shell exiting.
func (s *Shell) End() {
	s.pw.Close()
}

// Input returns everything written so far.
func (s *Shell) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.String()
}

// Resizes returns every (rows, cols) pair received.
func (s *Shell) Resizes() [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]int(nil), s.resizes...)
}

// Closes returns how many times Close was called.
func (s *Shell) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

var (
	_ session.Connector = (*Connector)(nil)
	_ session.Transport = (*Transport)(nil)
	_ session.Shell     = (*Shell)(nil)
)
