package monitor

import (
	"context"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/depthsync/internal/bus"
)

// DefaultIntervalWindow is the number of recent intervals kept per topic.
const DefaultIntervalWindow = 512

// IntervalSummary describes the spacing of recent samples on one topic.
type IntervalSummary struct {
	Topic    string  `json:"topic"`
	Samples  uint64  `json:"samples"`
	Window   int     `json:"window"`
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	P95Ms    float64 `json:"p95_ms"`
	RateHz   float64 `json:"rate_hz"`
}

type topicWindow struct {
	last      int64
	have      bool
	samples   uint64
	intervals []float64
	next      int
}

func (w *topicWindow) add(ms float64, size int) {
	if len(w.intervals) < size {
		w.intervals = append(w.intervals, ms)
		return
	}
	w.intervals[w.next] = ms
	w.next = (w.next + 1) % size
}

// IntervalStats tracks the gap between consecutive published stamps per
// topic over a sliding window.
type IntervalStats struct {
	mu     sync.Mutex
	window int
	topics map[string]*topicWindow
}

// NewIntervalStats creates a tracker with the given window per topic. A
// non-positive window means DefaultIntervalWindow.
func NewIntervalStats(window int) *IntervalStats {
	if window <= 0 {
		window = DefaultIntervalWindow
	}
	return &IntervalStats{window: window, topics: make(map[string]*topicWindow)}
}

// Observe records a published stamp. Stamps that go backwards relative to
// the topic's previous stamp restart the interval chain without recording
// a gap.
func (s *IntervalStats) Observe(topic string, stampNanos int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.topics[topic]
	if !ok {
		w = &topicWindow{}
		s.topics[topic] = w
	}
	w.samples++
	if w.have && stampNanos >= w.last {
		w.add(float64(stampNanos-w.last)/1e6, s.window)
	}
	w.last = stampNanos
	w.have = true
}

// Summaries returns one summary per observed topic, sorted by topic.
func (s *IntervalStats) Summaries() []IntervalSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]IntervalSummary, 0, len(s.topics))
	for topic, w := range s.topics {
		sum := IntervalSummary{Topic: topic, Samples: w.samples, Window: len(w.intervals)}
		if len(w.intervals) > 0 {
			sorted := append([]float64(nil), w.intervals...)
			sort.Float64s(sorted)
			sum.MeanMs, sum.StdDevMs = stat.MeanStdDev(sorted, nil)
			if len(sorted) < 2 {
				sum.StdDevMs = 0
			}
			sum.MinMs = floats.Min(sorted)
			sum.MaxMs = floats.Max(sorted)
			sum.P95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
			if sum.MeanMs > 0 {
				sum.RateHz = 1000 / sum.MeanMs
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Run observes every message on b until ctx is done or the bus closes.
func (s *IntervalStats) Run(ctx context.Context, b *bus.Bus) {
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			s.Observe(m.Topic, m.Stamp.Nanos())
		}
	}
}
