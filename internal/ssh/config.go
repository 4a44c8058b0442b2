// Package ssh establishes SSH transports to remote hosts, either directly or
// through a jump host, and opens interactive pty shells on them.
package ssh

import (
	"errors"
	"net"
	"strconv"
)

// DefaultPort is used when a ConnectionConfig leaves Port unset.
const DefaultPort = 22

// DirectConnectionName labels sessions whose config has no friendly name.
const DirectConnectionName = "Direct Connection"

// ConnectionConfig describes how to reach one host. It is treated as
// immutable once a session starts.
type ConnectionConfig struct {
	ID         string            `json:"id,omitempty" yaml:"id"`
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Host       string            `json:"host" yaml:"host"`
	Port       int               `json:"port,omitempty" yaml:"port,omitempty"`
	Username   string            `json:"username" yaml:"username"`
	Password   string            `json:"password,omitempty" yaml:"password,omitempty"`
	UseAgent   bool              `json:"useAgent,omitempty" yaml:"use_agent,omitempty"`
	IsJump     bool              `json:"isJump,omitempty" yaml:"is_jump,omitempty"`
	JumpConfig *ConnectionConfig `json:"jumpConfig,omitempty" yaml:"jump_config,omitempty"`

	// AppUser is the operator driving the session. It is not persisted.
	AppUser string `json:"appUser,omitempty" yaml:"-"`
}

// Addr returns host:port, defaulting the port to 22.
func (c ConnectionConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// DisplayName returns the friendly name or DirectConnectionName.
func (c ConnectionConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return DirectConnectionName
}

// HasJump reports whether the connection goes through a jump host.
func (c ConnectionConfig) HasJump() bool {
	return c.JumpConfig != nil && c.JumpConfig.Host != ""
}

// Validate checks the fields needed to attempt a connection.
func (c ConnectionConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("port out of range")
	}
	if c.HasJump() {
		if err := c.JumpConfig.Validate(); err != nil {
			return errors.New("jump host: " + err.Error())
		}
	}
	return nil
}

// Redacted returns a copy with passwords cleared, for listing and logging.
func (c ConnectionConfig) Redacted() ConnectionConfig {
	out := c
	out.Password = ""
	if c.JumpConfig != nil {
		jump := c.JumpConfig.Redacted()
		out.JumpConfig = &jump
	}
	return out
}
