// Package session runs interactive SSH terminal tabs. A Session owns one
// tab's transport, shell and command capture; a Manager owns the sessions of
// one client connection.
package session

import (
	"github.com/acolita/hydra-sh/internal/history"
)

// Status is a tab's connection state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Listener receives a session's events. OnData and OnStatus are called from
// the session's connection goroutine in stream order; OnCommand is called
// from the capture timer. Implementations must be safe for concurrent use.
type Listener interface {
	// OnData receives pty output verbatim, plus inline status banners.
	OnData(tabID, data string)
	OnStatus(tabID string, status Status)
	// OnCommand receives each captured command.
	OnCommand(tabID string, entry history.Entry)
}

// Recorder receives a copy of a tab's pty output.
type Recorder interface {
	Output(data string) error
	Resize(rows, cols int) error
	Close() error
}

type nopListener struct{}

func (nopListener) OnData(string, string)           {}
func (nopListener) OnStatus(string, Status)         {}
func (nopListener) OnCommand(string, history.Entry) {}
