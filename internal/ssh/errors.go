package ssh

import (
	"fmt"
	"time"
)

// Hop names which leg of a connection failed.
type Hop string

const (
	HopTarget Hop = "target"
	HopJump   Hop = "jump"
)

// ConnectionError is an authentication or transport failure on either hop.
type ConnectionError struct {
	Hop  Hop
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ssh %s %s: %v", e.Hop, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TunnelError means the jump host refused to forward to the target.
type TunnelError struct {
	Jump   string
	Target string
	Err    error
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("tunnel %s -> %s: %v", e.Jump, e.Target, e.Err)
}

func (e *TunnelError) Unwrap() error { return e.Err }

// TimeoutError means the ready-timeout expired before the hop was usable.
type TimeoutError struct {
	Hop   Hop
	Addr  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ssh %s %s: not ready after %s", e.Hop, e.Addr, e.After)
}

// Timeout lets callers test with net.Error-style checks.
func (e *TimeoutError) Timeout() bool { return true }
