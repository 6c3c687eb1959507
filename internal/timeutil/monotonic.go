package timeutil

import "time"

// Monotonic converts host clock readings into nanoseconds since a fixed
// epoch captured at construction. Every HostTimestamp published by the
// driver is measured against the same Monotonic so consumers share one
// time base. With RealClock the difference uses the monotonic reading, so
// wall-clock steps do not leak into sample timestamps.
type Monotonic struct {
	clock Clock
	epoch time.Time
}

// NewMonotonic captures the epoch from clock. A nil clock selects RealClock.
func NewMonotonic(clock Clock) *Monotonic {
	if clock == nil {
		clock = RealClock{}
	}
	return &Monotonic{clock: clock, epoch: clock.Now()}
}

// NowNanos returns nanoseconds elapsed since the epoch.
func (m *Monotonic) NowNanos() int64 {
	return m.clock.Since(m.epoch).Nanoseconds()
}

// Epoch returns the wall time at which the epoch was captured.
func (m *Monotonic) Epoch() time.Time {
	return m.epoch
}

// WallTime maps epoch-relative nanoseconds back to wall time for display.
func (m *Monotonic) WallTime(ns int64) time.Time {
	return m.epoch.Add(time.Duration(ns))
}

// Clock returns the underlying clock.
func (m *Monotonic) Clock() Clock {
	return m.clock
}
