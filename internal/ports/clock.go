// Package ports holds the seams between hydra's logic and the operating
// system: time, files, the network and interactive dialogs.
package ports

import "time"

// Clock supplies time to the capture debouncer, the history pruner and ssh
// keepalives.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer cancels an AfterFunc call.
type Timer interface {
	// Stop reports whether it prevented the call.
	Stop() bool
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
