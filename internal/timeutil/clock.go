// Package timeutil provides the host clock used to timestamp samples and a
// manually driven clock for tests.
package timeutil

import "time"

// Clock is the host time source. Everything that reads the host clock or
// runs on a period takes a Clock so tests can drive it by hand.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped. Slow receivers miss ticks
// rather than queueing them.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock reads the system clock. Its times carry a monotonic reading.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
