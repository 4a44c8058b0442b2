package capture

import (
	"strings"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/prompt"
)

const (
	keyBackspace = 0x7f
	keyCtrlH     = 0x08
	keyCtrlC     = 0x03
	keyCtrlU     = 0x15
)

// Machine is the capture state for one session. It performs no I/O and is
// not safe for concurrent use; Tracker serializes access to it.
type Machine struct {
	clock    ports.Clock
	detector *prompt.Detector

	state      State
	context    Context
	currentCmd []rune
	output     strings.Builder
	cmdStart   time.Time
	lastChunk  time.Time

	// awaitingSecret follows the last non-blank output line: set while the
	// shell waits for a credential, so the next typed line is never captured.
	awaitingSecret bool
	secretPattern  string

	shellPrompt     string
	promptCaptured  bool
	initialHostname string
	lastHostname    string
}

// NewMachine returns an idle machine. A nil detector uses the default
// credential markers.
func NewMachine(clock ports.Clock, detector *prompt.Detector) *Machine {
	if detector == nil {
		detector = prompt.NewDetector()
	}
	return &Machine{clock: clock, detector: detector}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Context returns whether the shell is inside a container sub-shell.
func (m *Machine) Context() Context { return m.context }

// ShellPrompt returns the first prompt seen, or "".
func (m *Machine) ShellPrompt() string { return m.shellPrompt }

// InitialHostname returns the hostname of the first prompt seen, or "".
func (m *Machine) InitialHostname() string { return m.initialHostname }

// LastHostname returns the hostname of the most recent trailing prompt.
func (m *Machine) LastHostname() string { return m.lastHostname }

// Input consumes typed bytes in order. lineHint is the client's rendering of
// the current line, used when the typed text is blank or carries cursor-key
// residue. It reports whether a capture started.
func (m *Machine) Input(data, lineHint string) bool {
	started := false
	for _, r := range data {
		switch {
		case r == '\r':
			if m.state == StateRecording {
				continue
			}
			if m.awaitingSecret {
				m.awaitingSecret = false
				m.currentCmd = m.currentCmd[:0]
				continue
			}
			if m.beginCapture(lineHint) {
				started = true
			}
		case r == keyBackspace || r == keyCtrlH:
			if m.state == StateIdle && len(m.currentCmd) > 0 {
				m.currentCmd = m.currentCmd[:len(m.currentCmd)-1]
			}
		case r == keyCtrlC || r == keyCtrlU:
			if m.state == StateIdle {
				m.currentCmd = m.currentCmd[:0]
			}
			if r == keyCtrlC {
				m.awaitingSecret = false
			}
		case r >= ' ':
			if m.state == StateIdle {
				m.currentCmd = append(m.currentCmd, r)
			}
		}
	}
	return started
}

func (m *Machine) beginCapture(lineHint string) bool {
	cmd := string(m.currentCmd)
	if (strings.TrimSpace(cmd) == "" || isDirty(cmd)) && lineHint != "" {
		cmd = prompt.CommandFromLine(lineHint, m.shellPrompt)
		m.currentCmd = []rune(cmd)
	}
	if strings.TrimSpace(cmd) == "" {
		return false
	}

	m.state = StateRecording
	m.cmdStart = m.clock.Now()
	m.lastChunk = m.cmdStart
	m.output.Reset()
	return true
}

// Output consumes a chunk of shell output. It reports whether the chunk was
// recorded, in which case the quiet window restarts.
func (m *Machine) Output(chunk string) bool {
	if !m.promptCaptured && strings.TrimSpace(chunk) != "" {
		last := strings.TrimSpace(prompt.LastLine(chunk))
		if prompt.EndsLikePrompt(last) {
			m.promptCaptured = true
			m.shellPrompt = last
			m.initialHostname = prompt.Hostname(last)
			m.lastHostname = m.initialHostname
		}
	}

	if last := lastNonBlankLine(chunk); last != "" {
		p, ok := m.detector.CredentialPrompt(last)
		m.awaitingSecret = ok
		m.secretPattern = p.Name
	}

	if m.state != StateRecording {
		return false
	}
	m.output.WriteString(chunk)
	m.lastChunk = m.clock.Now()
	return true
}

// Finalize ends the current capture. It returns false when there was
// nothing worth keeping: no capture, a blank command, a pasted listing line,
// escape residue, or output that asked for a credential. The machine is idle
// afterwards in every case.
func (m *Machine) Finalize() (Record, bool) {
	if m.state != StateRecording {
		return Record{}, false
	}
	defer m.Reset()

	cmd := strings.TrimSpace(string(m.currentCmd))
	output := m.output.String()

	switch {
	case cmd == "":
		return Record{}, false
	case isListingPaste(cmd):
		return Record{}, false
	case isEscapeArtifact(cmd):
		return Record{}, false
	case m.detector.HasCredentialPrompt(output):
		return Record{}, false
	}

	duration := m.lastChunk.Sub(m.cmdStart)
	if duration < 0 {
		duration = 0
	}

	lines := prompt.Lines(StripOSC(output))
	trailing := ""
	if last := strings.TrimSpace(lines[len(lines)-1]); m.isPromptLine(last) {
		trailing = last
		lines = lines[:len(lines)-1]
	}

	execType := m.classify(trailing, cmd)

	return Record{
		Cmd:           cmd,
		Output:        strings.TrimSpace(strings.Join(lines, "\n")),
		Duration:      duration,
		Timestamp:     m.clock.Now(),
		ExecutionType: execType,
	}, true
}

func lastNonBlankLine(text string) string {
	lines := prompt.Lines(text)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func (m *Machine) isPromptLine(line string) bool {
	if line == "" {
		return false
	}
	clean := prompt.StripANSI(line)
	if m.shellPrompt != "" && clean == prompt.StripANSI(m.shellPrompt) {
		return true
	}
	return prompt.LooksLikePrompt(clean)
}

// classify applies Classify and then the sub-shell context: once inside a
// container sub-shell, commands stay dockerInteractive until a prompt for
// the initial host comes back.
func (m *Machine) classify(trailing, cmd string) ExecutionType {
	execType := Classify(trailing, m.initialHostname, cmd)

	host := prompt.Hostname(trailing)
	if host != "" {
		m.lastHostname = host
	}
	home := m.isHomePrompt(trailing, host)

	switch m.context {
	case ContextContainer:
		if home {
			m.context = ContextHost
		} else {
			execType = ExecDockerInteractive
		}
	case ContextHost:
		if execType == ExecDockerInteractive && !home {
			m.context = ContextContainer
		}
	}
	return execType
}

func (m *Machine) isHomePrompt(trailing, host string) bool {
	if trailing == "" {
		return false
	}
	if m.initialHostname != "" {
		return host == m.initialHostname
	}
	return prompt.StripANSI(trailing) == prompt.StripANSI(m.shellPrompt)
}

// Reset discards any capture in progress. The captured prompt, hostname and
// sub-shell context are kept.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.currentCmd = m.currentCmd[:0]
	m.output.Reset()
	m.cmdStart = time.Time{}
	m.lastChunk = time.Time{}
}
