package ssh

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Shell is an interactive pty shell on a Transport.
type Shell struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	mu     sync.Mutex
	rows   int
	cols   int
	closed bool
}

// Read reads pty output.
func (s *Shell) Read(b []byte) (int, error) {
	return s.stdout.Read(b)
}

// Write sends input to the pty.
func (s *Shell) Write(b []byte) (int, error) {
	return s.stdin.Write(b)
}

// Resize forwards a window-change request.
func (s *Shell) Resize(rows, cols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if err := s.session.WindowChange(rows, cols); err != nil {
		return fmt.Errorf("window change: %w", err)
	}
	s.rows = rows
	s.cols = cols
	return nil
}

// Size returns the last size applied to the pty.
func (s *Shell) Size() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

// Wait blocks until the remote shell exits.
func (s *Shell) Wait() error {
	return s.session.Wait()
}

// Close closes the shell channel. Safe to call more than once.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.session.Close(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
