package capture

import (
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
)

// Debouncer runs fn once the quiet window passes without another Reset.
// After Stop it never runs fn again.
type Debouncer struct {
	clock  ports.Clock
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   ports.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer returns an idle debouncer.
func NewDebouncer(clock ports.Clock, window time.Duration, fn func()) *Debouncer {
	if window <= 0 {
		window = DefaultQuietWindow
	}
	return &Debouncer{clock: clock, window: window, fn: fn}
}

// Reset restarts the quiet window.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.window, func() { d.fire(gen) })
}

// Stop cancels any pending expiry permanently.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// fire ignores expiries from timers that were reset or stopped after they
// were already due.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
