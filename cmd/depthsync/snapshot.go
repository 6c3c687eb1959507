package main

import (
	"github.com/banshee-data/depthsync/internal/db"
	"github.com/banshee-data/depthsync/internal/dispatch"
	"github.com/banshee-data/depthsync/internal/stream"
	"github.com/banshee-data/depthsync/internal/timeutil"
)

type statser interface {
	Stats() dispatch.Stats
}

// streamSnapshots adapts dispatcher counters to recorder rows, one per
// stream kind, stamped with the shared host epoch.
func streamSnapshots(d statser, host *timeutil.Monotonic) func() []db.StreamSnapshot {
	return func() []db.StreamSnapshot {
		st := d.Stats()
		now := host.NowNanos()
		out := make([]db.StreamSnapshot, 0, len(stream.All))
		for _, k := range stream.All {
			s := st.Streams[k]
			out = append(out, db.StreamSnapshot{
				HostNanos:      now,
				Stream:         k,
				Accepted:       s.Accepted,
				NonMonotonic:   s.NonMonotonic,
				Subsampled:     s.Subsampled,
				Settling:       s.Settling,
				Malformed:      s.Malformed,
				Unsynchronized: s.Unsynchronized,
			})
		}
		return out
	}
}
