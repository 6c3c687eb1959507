package admission

import "sync/atomic"

// MotionBurstFilter counts inertial samples from stream start and
// suppresses the first threshold of them. Once the threshold is passed it
// stays inert for the rest of the session.
type MotionBurstFilter struct {
	threshold uint64
	seen      atomic.Uint64
}

// NewMotionBurstFilter suppresses the first threshold samples. A zero
// threshold makes the filter inert from the start.
func NewMotionBurstFilter(threshold uint32) *MotionBurstFilter {
	return &MotionBurstFilter{threshold: uint64(threshold)}
}

// Suppress counts one sample and reports whether it falls inside the
// settling burst.
func (f *MotionBurstFilter) Suppress() bool {
	if f.Inert() {
		return false
	}
	return f.seen.Add(1) <= f.threshold
}

// Inert reports whether the burst has been fully consumed.
func (f *MotionBurstFilter) Inert() bool {
	return f.seen.Load() >= f.threshold
}

// Seen returns how many samples were counted, saturating at the threshold.
func (f *MotionBurstFilter) Seen() uint64 {
	n := f.seen.Load()
	if n > f.threshold {
		return f.threshold
	}
	return n
}
