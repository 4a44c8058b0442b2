package session

import (
	"context"
	"io"

	"github.com/acolita/hydra-sh/internal/ssh"
)

// Connector opens the transport for a tab.
type Connector interface {
	Connect(ctx context.Context, cfg ssh.ConnectionConfig, progress ssh.Progress) (Transport, error)
}

// Transport is a live connection able to start a shell.
type Transport interface {
	OpenShell(opts ssh.ShellOptions) (Shell, error)
	Close() error
}

// Shell is an interactive pty.
type Shell interface {
	io.Reader
	io.Writer
	Resize(rows, cols int) error
	Close() error
}

// SSHConnector adapts an *ssh.Connector.
func SSHConnector(c *ssh.Connector) Connector {
	return sshConnector{c: c}
}

type sshConnector struct {
	c *ssh.Connector
}

func (s sshConnector) Connect(ctx context.Context, cfg ssh.ConnectionConfig, progress ssh.Progress) (Transport, error) {
	t, err := s.c.Connect(ctx, cfg, progress)
	if err != nil {
		return nil, err
	}
	return sshTransport{t: t}, nil
}

type sshTransport struct {
	t *ssh.Transport
}

func (s sshTransport) OpenShell(opts ssh.ShellOptions) (Shell, error) {
	sh, err := s.t.OpenShell(opts)
	if err != nil {
		return nil, err
	}
	return sh, nil
}

func (s sshTransport) Close() error { return s.t.Close() }
