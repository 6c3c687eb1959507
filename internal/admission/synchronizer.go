// Package admission decides which translated samples of each stream are
// published. It works purely on host-time seconds and knows nothing about
// device clocks or payloads.
package admission

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/depthsync/internal/stream"
)

// DefaultSkipFirstMotionSamples is the number of inertial samples dropped
// at stream start while the sensor settles.
const DefaultSkipFirstMotionSamples = 100

// neverPublished is the LastTimestampS sentinel for a stream with no
// accepted sample yet.
const neverPublished = -1.0

// State is the admission state of one stream.
type State struct {
	LastTimestampS  float64 `json:"last_timestamp_s"`
	FrameCounter    uint64  `json:"frame_counter"`
	SubsampleFactor uint32  `json:"subsample_factor"`
	SamplesToSkip   uint32  `json:"samples_to_skip"`
}

// Config holds per-stream subsample factors and the motion burst length.
// A zero or missing factor means 1 (accept all).
type Config struct {
	SubsampleFactors       map[stream.Kind]uint32
	SkipFirstMotionSamples uint32
}

type streamSlot struct {
	mu    sync.Mutex
	state State
	stats Stats
}

// Synchronizer holds one independent state per stream kind. Streams never
// contend with each other; calls for the same kind are serialised.
type Synchronizer struct {
	slots   [stream.NumKinds]*streamSlot
	burst   *MotionBurstFilter
	unknown atomic.Uint64
}

// NewSynchronizer builds a synchronizer with every stream in the
// never-published state.
func NewSynchronizer(cfg Config) *Synchronizer {
	s := &Synchronizer{burst: NewMotionBurstFilter(cfg.SkipFirstMotionSamples)}
	for _, k := range stream.All {
		factor := cfg.SubsampleFactors[k]
		if factor == 0 {
			factor = 1
		}
		st := State{LastTimestampS: neverPublished, SubsampleFactor: factor}
		if k == stream.Motion {
			st.SamplesToSkip = cfg.SkipFirstMotionSamples
		}
		s.slots[k] = &streamSlot{state: st}
	}
	return s
}

// Admit applies the motion settling filter, then the monotonicity guard,
// then subsampling. An out-of-range kind is dropped as UnknownStream.
func (s *Synchronizer) Admit(kind stream.Kind, timestampS float64) Decision {
	if !kind.Valid() {
		s.unknown.Add(1)
		return dropped(UnknownStream)
	}
	slot := s.slots[kind]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	d := s.decide(kind, slot, timestampS)
	slot.stats.record(d)
	return d
}

func (s *Synchronizer) decide(kind stream.Kind, slot *streamSlot, ts float64) Decision {
	st := &slot.state

	if kind == stream.Motion && s.burst.Suppress() {
		if st.SamplesToSkip > 0 {
			st.SamplesToSkip--
		}
		return dropped(Settling)
	}

	if st.LastTimestampS != neverPublished && ts <= st.LastTimestampS {
		return dropped(NonMonotonic)
	}

	st.FrameCounter++
	if (st.FrameCounter-1)%uint64(st.SubsampleFactor) != 0 {
		return dropped(Subsampled)
	}

	st.LastTimestampS = ts
	return accepted
}

// State returns a snapshot of one stream's state. An out-of-range kind
// reports the never-published state.
func (s *Synchronizer) State(kind stream.Kind) State {
	if !kind.Valid() {
		return State{LastTimestampS: neverPublished}
	}
	slot := s.slots[kind]
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.state
}

// SetSubsampleFactor changes a stream's factor. The frame counter keeps
// running so the phase stays stable.
func (s *Synchronizer) SetSubsampleFactor(kind stream.Kind, factor uint32) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid stream kind %d", int(kind))
	}
	if factor == 0 {
		return fmt.Errorf("subsample factor must be at least 1")
	}
	slot := s.slots[kind]
	slot.mu.Lock()
	defer slot.mu.Unlock()
	slot.state.SubsampleFactor = factor
	return nil
}

// Stats returns admission counters for every stream.
func (s *Synchronizer) Stats() map[stream.Kind]Stats {
	out := make(map[stream.Kind]Stats, stream.NumKinds)
	for _, k := range stream.All {
		slot := s.slots[k]
		slot.mu.Lock()
		out[k] = slot.stats
		slot.mu.Unlock()
	}
	return out
}

// UnknownKinds returns how many Admit calls named an out-of-range kind.
func (s *Synchronizer) UnknownKinds() uint64 {
	return s.unknown.Load()
}

// MotionSettled reports whether the settling burst is over.
func (s *Synchronizer) MotionSettled() bool {
	return s.burst.Inert()
}
