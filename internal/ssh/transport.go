package ssh

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Transport is a live SSH connection to a target, possibly carried over a
// jump host connection. Closing it closes the target before the jump host.
type Transport struct {
	target *ssh.Client
	jump   *ssh.Client
	agent  *Agent

	clock         ports.Clock
	logger        *slog.Logger
	keepaliveStop chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newTransport(target, jump *ssh.Client, ag *Agent, clock ports.Clock, keepalive time.Duration, logger *slog.Logger) *Transport {
	t := &Transport{
		target: target,
		jump:   jump,
		agent:  ag,
		clock:  clock,
		logger: logger,
	}
	if keepalive > 0 {
		t.keepaliveStop = make(chan struct{})
		go t.keepaliveLoop(keepalive, t.keepaliveStop)
	}
	return t
}

// Hops returns 1 for a direct transport and 2 for a jump-host transport.
func (t *Transport) Hops() int {
	if t.jump != nil {
		return 2
	}
	return 1
}

// keepaliveLoop sends periodic keepalive requests to prevent idle disconnects.
// The stop channel is passed in so the goroutine never reads the struct field.
func (t *Transport) keepaliveLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := t.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			for _, client := range []*ssh.Client{t.target, t.jump} {
				if client == nil {
					continue
				}
				// A dead connection surfaces through the shell read loop.
				if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
					t.logger.Debug("keepalive failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// ShellOptions configures the interactive pty.
type ShellOptions struct {
	Term string
	Rows int
	Cols int
	// ForwardAgent enables agent forwarding on the shell when the transport
	// was authenticated with an agent.
	ForwardAgent bool
}

// OpenShell requests a pty at the given size and starts an interactive shell.
func (t *Transport) OpenShell(opts ShellOptions) (*Shell, error) {
	if opts.Term == "" {
		opts.Term = "xterm-256color"
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}
	if opts.Cols <= 0 {
		opts.Cols = 80
	}

	session, err := t.target.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	if opts.ForwardAgent && t.agent != nil {
		if err := agent.ForwardToAgent(t.target, t.agent.Keyring()); err != nil {
			t.logger.Warn("agent forwarding setup failed", slog.String("error", err.Error()))
		} else if err := agent.RequestAgentForwarding(session); err != nil {
			t.logger.Warn("agent forwarding refused", slog.String("error", err.Error()))
		}
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(opts.Term, opts.Rows, opts.Cols, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	return &Shell{session: session, stdin: stdin, stdout: stdout, rows: opts.Rows, cols: opts.Cols}, nil
}

// Close ends the target transport, then the jump transport. It is safe to
// call more than once; later calls return the first result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.keepaliveStop != nil {
			close(t.keepaliveStop)
		}
		var errs []error
		if err := t.target.Close(); err != nil && !isClosedErr(err) {
			errs = append(errs, fmt.Errorf("close target: %w", err))
		}
		if t.jump != nil {
			if err := t.jump.Close(); err != nil && !isClosedErr(err) {
				errs = append(errs, fmt.Errorf("close jump: %w", err))
			}
		}
		if t.agent != nil {
			t.agent.Close()
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
