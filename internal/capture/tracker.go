package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/prompt"
)

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Clock       ports.Clock
	QuietWindow time.Duration
	Detector    *prompt.Detector
	Logger      *slog.Logger
}

// Tracker drives a Machine from a session's input and output streams and
// finalizes captures when the quiet window expires. Emit runs outside the
// tracker lock, on the timer's goroutine, and never after Close returns.
type Tracker struct {
	// emitMu is held across a finalize and its emit; Close takes it first.
	emitMu sync.Mutex

	mu       sync.Mutex
	machine  *Machine
	debounce *Debouncer
	emit     func(Record)
	logger   *slog.Logger
	closed   bool
}

// NewTracker returns a Tracker calling emit for every kept Record.
func NewTracker(opts TrackerOptions, emit func(Record)) *Tracker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	t := &Tracker{
		machine: NewMachine(opts.Clock, opts.Detector),
		emit:    emit,
		logger:  opts.Logger,
	}
	t.debounce = NewDebouncer(opts.Clock, opts.QuietWindow, t.finalize)
	return t
}

// Input feeds typed bytes and the optional rendered-line hint.
func (t *Tracker) Input(data, lineHint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	// The window also runs from the carriage return so a command whose echo
	// never arrives cannot hold the machine in RECORDING.
	if t.machine.Input(data, lineHint) {
		t.debounce.Reset()
	}
}

// Output feeds a chunk of shell output.
func (t *Tracker) Output(chunk string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	waiting := t.machine.awaitingSecret
	if t.machine.Output(chunk) {
		t.debounce.Reset()
	}
	if t.machine.awaitingSecret && !waiting {
		t.logger.Debug("credential prompt, next line not captured",
			slog.String("pattern", t.machine.secretPattern))
	}
}

// ShellPrompt returns the captured prompt, or "".
func (t *Tracker) ShellPrompt() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.machine.ShellPrompt()
}

// State returns the machine state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.machine.State()
}

// Close cancels a pending finalize and discards any capture in progress. A
// finalize already emitting is waited for.
func (t *Tracker) Close() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.debounce.Stop()
	t.machine.Reset()
}

func (t *Tracker) finalize() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	rec, ok := t.machine.Finalize()
	t.mu.Unlock()

	if ok && t.emit != nil {
		t.emit(rec)
	}
}
