// Package capture reconstructs discrete commands from an interactive pty
// byte stream. Typed input starts a capture on carriage return, shell output
// accumulates until a quiet window passes, and the result is cleaned and
// classified into a Record.
package capture

import "time"

// ExecutionType describes how a command ran.
type ExecutionType string

const (
	ExecBash              ExecutionType = "bash"
	ExecDocker            ExecutionType = "docker"
	ExecDockerInteractive ExecutionType = "dockerInteractive"
)

// State is the capture state.
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "RECORDING"
	}
	return "IDLE"
}

// Context tracks whether the shell is the login shell or a nested
// container sub-shell entered during the session.
type Context int

const (
	ContextHost Context = iota
	ContextContainer
)

func (c Context) String() string {
	if c == ContextContainer {
		return "container"
	}
	return "host"
}

// DefaultQuietWindow is the debounce window after the last output chunk.
const DefaultQuietWindow = 200 * time.Millisecond

// Record is one finalized command.
type Record struct {
	Cmd           string
	Output        string
	Duration      time.Duration
	Timestamp     time.Time
	ExecutionType ExecutionType
}
