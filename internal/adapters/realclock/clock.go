// Package realclock backs ports.Clock with the time package.
package realclock

import (
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
)

// Clock is the wall clock.
type Clock struct{}

func New() Clock { return Clock{} }

func (Clock) Now() time.Time { return time.Now() }

func (Clock) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}

func (Clock) NewTicker(d time.Duration) ports.Ticker {
	return ticker{time.NewTicker(d)}
}

type ticker struct{ *time.Ticker }

func (t ticker) C() <-chan time.Time { return t.Ticker.C }

var _ ports.Clock = Clock{}
