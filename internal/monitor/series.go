// Package monitor keeps short in-memory histories of the driver's timing
// behaviour: the translator's offset error over time and the spacing of
// published samples per topic. Both feed the drift plot and the charts
// served by the API.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/timeutil"
)

// DefaultSeriesLimit bounds the number of retained offset samples.
const DefaultSeriesLimit = 4096

// OffsetSample is one observation of the translator's offset error.
type OffsetSample struct {
	HostNanos        int64   `json:"host_nanos"`
	OffsetErrorNanos int64   `json:"offset_error_nanos"`
	SkewPPM          float64 `json:"skew_ppm"`
}

// ClockSeries records offset samples and calibration events.
type ClockSeries struct {
	mu      sync.Mutex
	limit   int
	samples []OffsetSample
	events  []clocksync.Event
}

// NewClockSeries keeps at most limit samples and limit events; older
// entries are discarded first. A non-positive limit means
// DefaultSeriesLimit.
func NewClockSeries(limit int) *ClockSeries {
	if limit <= 0 {
		limit = DefaultSeriesLimit
	}
	return &ClockSeries{limit: limit}
}

// Sample appends the translator's latest offset error. Uncalibrated status
// and repeats of the previous update are ignored.
func (s *ClockSeries) Sample(st clocksync.Status) {
	if !st.Calibrated {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.samples); n > 0 && s.samples[n-1].HostNanos == st.LastUpdateHostNanos {
		return
	}
	s.samples = appendBounded(s.samples, OffsetSample{
		HostNanos:        st.LastUpdateHostNanos,
		OffsetErrorNanos: st.LastOffsetErrorNanos,
		SkewPPM:          st.SkewPPM,
	}, s.limit)
}

// OnClockEvent records a calibration event. It matches the translator's
// event hook.
func (s *ClockSeries) OnClockEvent(ev clocksync.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = appendBounded(s.events, ev, s.limit)
}

// Samples returns a copy of the retained samples, oldest first.
func (s *ClockSeries) Samples() []OffsetSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OffsetSample(nil), s.samples...)
}

// Events returns a copy of the retained events, oldest first.
func (s *ClockSeries) Events() []clocksync.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]clocksync.Event(nil), s.events...)
}

// Run samples status every interval until ctx is done.
func (s *ClockSeries) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration, status func() clocksync.Status) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.Sample(status())
		}
	}
}

func appendBounded[T any](xs []T, x T, limit int) []T {
	xs = append(xs, x)
	if over := len(xs) - limit; over > 0 {
		xs = append(xs[:0], xs[over:]...)
	}
	return xs
}
