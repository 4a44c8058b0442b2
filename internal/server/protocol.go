package server

import "github.com/acolita/hydra-sh/internal/ssh"

// Inbound message types.
const (
	msgCreateSession    = "create-session"
	msgTerminalInput    = "terminal-input"
	msgResize           = "resize"
	msgCloseSession     = "close-session"
	msgLoadConnections  = "load-connections"
	msgSaveConnection   = "save-connection"
	msgDeleteConnection = "delete-connection"
	msgLoadFullHistory  = "load-full-history"
)

// Outbound message types.
const (
	msgData            = "data"
	msgStatus          = "status"
	msgHistoryUpdated  = "history-updated"
	msgConnectionsList = "connections-list"
	msgFullHistory     = "full-history"
	msgError           = "error"
)

const (
	// MaxInputSize bounds one terminal-input payload; larger ones are dropped.
	MaxInputSize = 64 * 1024
	// MaxDimension bounds rows and cols.
	MaxDimension = 500

	readLimit   = 1024 * 1024
	defaultRows = 24
	defaultCols = 80
)

// inbound is every client message; fields unused by a type stay zero.
type inbound struct {
	Type        string                `json:"type"`
	TabID       string                `json:"tabId"`
	Config      *ssh.ConnectionConfig `json:"config,omitempty"`
	Rows        int                   `json:"rows"`
	Cols        int                   `json:"cols"`
	Data        string                `json:"data"`
	CurrentLine string                `json:"currentLine"`
	ID          string                `json:"id"`
}

type outbound struct {
	Type    string `json:"type"`
	TabID   string `json:"tabId,omitempty"`
	Payload any    `json:"payload"`
}

// clampSize applies defaults to unset dimensions and caps the rest.
func clampSize(rows, cols int) (int, int) {
	if rows <= 0 {
		rows = defaultRows
	}
	if cols <= 0 {
		cols = defaultCols
	}
	return min(rows, MaxDimension), min(cols, MaxDimension)
}
