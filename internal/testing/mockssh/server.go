// Package mockssh runs an in-process SSH server for connector tests.
//
// Shell requests are served by a ShellHandler: PromptShell scripts a fake
// prompt, PtyShell runs a real program on a pty. A server built WithForwarding
// accepts direct-tcpip channels, so one instance can be the jump host for
// another.
package mockssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"golang.org/x/crypto/ssh"
)

// WindowSize is a pty size reported by the client.
type WindowSize struct {
	Rows uint32
	Cols uint32
}

// Stats is a snapshot of what the server has seen.
type Stats struct {
	Transports    int // completed handshakes
	OpenConns     int // client and forwarded connections still open
	PtyRequests   []WindowSize
	WindowChanges []WindowSize
	Forwards      []string // direct-tcpip targets
	AgentRequests int
}

// Server is a loopback SSH server.
type Server struct {
	ln      net.Listener
	config  *ssh.ServerConfig
	shell   ShellHandler
	forward bool
	users   map[string]string

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	stats Stats

	closing chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithUser accepts username with password. The user test/test always exists.
func WithUser(username, password string) Option {
	return func(s *Server) { s.users[username] = password }
}

// WithShellHandler serves shell requests with h. The default is
// PtyShell("/bin/sh").
func WithShellHandler(h ShellHandler) Option {
	return func(s *Server) { s.shell = h }
}

// WithForwarding accepts direct-tcpip channels and dials their targets.
func WithForwarding() Option {
	return func(s *Server) { s.forward = true }
}

// New starts a server on a random loopback port.
func New(opts ...Option) (*Server, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("host key signer: %w", err)
	}

	s := &Server{
		shell:   PtyShell("/bin/sh"),
		users:   map[string]string{"test": "test"},
		conns:   make(map[net.Conn]struct{}),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.config = &ssh.ServerConfig{PasswordCallback: s.checkPassword}
	s.config.AddHostKey(signer)

	s.ln, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s.wg.Add(1)
	go s.accept()
	return s, nil
}

func (s *Server) checkPassword(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	s.mu.Lock()
	want, ok := s.users[c.User()]
	s.mu.Unlock()
	if ok && string(password) == want {
		return nil, nil
	}
	return nil, fmt.Errorf("password rejected for %q", c.User())
}

// Addr returns host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Stats returns a copy of the counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.OpenConns = len(s.conns)
	st.PtyRequests = append([]WindowSize(nil), st.PtyRequests...)
	st.WindowChanges = append([]WindowSize(nil), st.WindowChanges...)
	st.Forwards = append([]string(nil), st.Forwards...)
	return st
}

func (s *Server) record(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Close stops accepting, drops every connection and waits for handlers.
func (s *Server) Close() error {
	close(s.closing)
	err := s.ln.Close()

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
				slog.Debug("mockssh accept", slog.String("error", err.Error()))
				continue
			}
		}
		s.track(conn)
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	sc, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		slog.Debug("mockssh handshake", slog.String("error", err.Error()))
		return
	}
	defer sc.Close()
	s.record(func(st *Stats) { st.Transports++ })

	// Keepalives are answered negatively, which clients accept.
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		switch nc.ChannelType() {
		case "session":
			ch, requests, err := nc.Accept()
			if err != nil {
				continue
			}
			s.wg.Add(1)
			go s.serveSession(ch, requests)
		case "direct-tcpip":
			if !s.forward {
				nc.Reject(ssh.Prohibited, "port forwarding is disabled")
				continue
			}
			s.wg.Add(1)
			go s.serveForward(nc)
		default:
			nc.Reject(ssh.UnknownChannelType, "unknown channel type")
		}
	}
}
