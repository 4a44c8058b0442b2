package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/acolita/hydra-sh/internal/ports"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// ErrNoAuthMethods is returned when a config has neither a usable agent nor a password.
var ErrNoAuthMethods = errors.New("no authentication methods available")

// Agent is a connection to the local SSH agent.
type Agent struct {
	conn   net.Conn
	client agent.ExtendedAgent
}

// DialAgent connects to the agent listening on socket.
func DialAgent(ctx context.Context, dialer ports.NetworkDialer, socket string) (*Agent, error) {
	if socket == "" {
		return nil, errors.New("SSH_AUTH_SOCK not set")
	}
	conn, err := dialer.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	return &Agent{conn: conn, client: agent.NewClient(conn)}, nil
}

// Keyring returns the agent for use with agent forwarding.
func (a *Agent) Keyring() agent.Agent {
	return a.client
}

// Close closes the agent socket.
func (a *Agent) Close() error {
	return a.conn.Close()
}

// authMethods builds the auth chain for cfg: agent keys first when an agent is
// available, then password and keyboard-interactive.
func authMethods(cfg ConnectionConfig, ag *Agent) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if ag != nil {
		methods = append(methods, ssh.PublicKeysCallback(ag.client.Signers))
	}

	if cfg.Password != "" {
		methods = append(methods, PasswordAuth(cfg.Password))
		methods = append(methods, KeyboardInteractiveAuth(cfg.Password))
	}

	if len(methods) == 0 {
		return nil, ErrNoAuthMethods
	}
	return methods, nil
}

// PasswordAuth returns a password auth method.
func PasswordAuth(password string) ssh.AuthMethod {
	return ssh.Password(password)
}

// KeyboardInteractiveAuth answers every keyboard-interactive question with password.
func KeyboardInteractiveAuth(password string) ssh.AuthMethod {
	return ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	})
}
