// Package fakeclock is a manual ports.Clock for tests.
//
// Time moves only when the test calls Advance. AfterFunc callbacks run on the
// goroutine that calls Advance, so debounce tests stay deterministic. Tickers
// deliver at most one unread tick, like time.Ticker.
package fakeclock

import (
	"sort"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
)

// Clock is a clock the test drives by hand.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	timers  []*Timer
	tickers []*Ticker
}

// New returns a clock reading start.
func New(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f for when Advance reaches now+d.
func (c *Clock) AfterFunc(d time.Duration, f func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &Timer{clock: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// NewTicker returns a ticker that ticks each time Advance crosses a period
// boundary. d must be positive.
func (c *Clock) NewTicker(d time.Duration) ports.Ticker {
	if d <= 0 {
		panic("fakeclock: non-positive ticker period")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &Ticker{clock: c, period: d, next: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward by d. Due tickers tick once, then due timers run
// in deadline order. Timers registered by a callback wait for the next Advance.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	for _, tk := range c.tickers {
		if now.Before(tk.next) {
			continue
		}
		select {
		case tk.ch <- now:
		default:
		}
		for !now.Before(tk.next) {
			tk.next = tk.next.Add(tk.period)
		}
	}

	var due []*Timer
	kept := c.timers[:0]
	for _, t := range c.timers {
		if now.Before(t.at) {
			kept = append(kept, t)
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	c.timers = kept
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].at.Equal(due[j].at) {
			return due[i].at.Before(due[j].at)
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

// Set jumps to t without firing anything.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// PendingTimers counts AfterFunc timers neither fired nor stopped.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// ActiveTickers counts tickers not yet stopped.
func (c *Clock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Timer is returned by AfterFunc.
type Timer struct {
	clock *Clock
	at    time.Time
	seq   int
	fn    func()
	fired bool
}

// Stop reports whether it prevented the callback from running.
func (t *Timer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.fired {
		return false
	}
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Ticker is returned by NewTicker.
type Ticker struct {
	clock  *Clock
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *Ticker) C() <-chan time.Time { return t.ch }

func (t *Ticker) Stop() {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.tickers {
		if p == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}

var _ ports.Clock = (*Clock)(nil)
