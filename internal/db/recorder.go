package db

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/monitoring"
	"github.com/banshee-data/depthsync/internal/timeutil"
)

// DefaultSnapshotInterval is how often stream counters are persisted.
const DefaultSnapshotInterval = 10 * time.Second

const eventQueue = 256

// Recorder persists one session: calibration events as they happen and
// stream counters on a fixed interval. Writes happen on the Run goroutine
// so the capture path never waits on sqlite.
type Recorder struct {
	db       *DB
	session  *Session
	clock    timeutil.Clock
	interval time.Duration
	snapshot func() []StreamSnapshot

	events  chan clocksync.Event
	dropped atomic.Uint64
	written atomic.Uint64
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Snapshot returns the current stream counters. Nil disables snapshots.
	Snapshot func() []StreamSnapshot
	// Interval between snapshots; zero means DefaultSnapshotInterval.
	Interval time.Duration
	// Clock drives the snapshot ticker and the session end stamp. Nil
	// means the real clock.
	Clock timeutil.Clock
}

// NewRecorder builds a recorder for an already started session.
func NewRecorder(db *DB, session *Session, opts RecorderOptions) *Recorder {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSnapshotInterval
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Recorder{
		db:       db,
		session:  session,
		clock:    opts.Clock,
		interval: opts.Interval,
		snapshot: opts.Snapshot,
		events:   make(chan clocksync.Event, eventQueue),
	}
}

// Session returns the session being recorded.
func (r *Recorder) Session() *Session {
	return r.session
}

// OnClockEvent queues an event for writing. It never blocks; events that do
// not fit in the queue are counted and discarded.
func (r *Recorder) OnClockEvent(ev clocksync.Event) {
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written returns the number of events stored.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

func (r *Recorder) writeEvent(ev clocksync.Event) {
	if err := r.db.RecordClockEvent(r.session.ID, ev); err != nil {
		monitoring.Opsf("recorder: %v", err)
		return
	}
	r.written.Add(1)
}

func (r *Recorder) writeSnapshot() {
	if r.snapshot == nil {
		return
	}
	if err := r.db.RecordStreamStats(r.session.ID, r.snapshot()); err != nil {
		monitoring.Opsf("recorder: %v", err)
	}
}

// Run writes until ctx is done, then flushes queued events, takes a final
// snapshot and closes the session.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-r.events:
			r.writeEvent(ev)
		case <-ticker.C():
			r.writeSnapshot()
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case ev := <-r.events:
			r.writeEvent(ev)
		default:
			r.writeSnapshot()
			if err := r.db.EndSession(r.session.ID, r.clock.Now()); err != nil {
				monitoring.Opsf("recorder: failed to close session %s: %v", r.session.ID, err)
			}
			return
		}
	}
}
