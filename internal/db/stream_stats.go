package db

import (
	"fmt"

	"github.com/banshee-data/depthsync/internal/stream"
)

// StreamSnapshot is one stream's counters at a point in host time.
type StreamSnapshot struct {
	HostNanos      int64       `json:"host_ns"`
	Stream         stream.Kind `json:"stream"`
	Accepted       uint64      `json:"accepted"`
	NonMonotonic   uint64      `json:"non_monotonic"`
	Subsampled     uint64      `json:"subsampled"`
	Settling       uint64      `json:"settling"`
	Malformed      uint64      `json:"malformed"`
	Unsynchronized uint64      `json:"unsynchronized"`
}

// RecordStreamStats stores a batch of snapshots in one transaction.
func (db *DB) RecordStreamStats(sessionID string, snaps []StreamSnapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO stream_stats (
		session_id, host_ns, stream, accepted, non_monotonic, subsampled, settling, malformed, unsynchronized
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snaps {
		if _, err := stmt.Exec(sessionID, s.HostNanos, s.Stream.String(),
			s.Accepted, s.NonMonotonic, s.Subsampled, s.Settling, s.Malformed, s.Unsynchronized); err != nil {
			return fmt.Errorf("failed to insert %s stats: %w", s.Stream, err)
		}
	}
	return tx.Commit()
}

// LatestStreamStats returns the newest snapshot of every stream in the
// session.
func (db *DB) LatestStreamStats(sessionID string) ([]StreamSnapshot, error) {
	rows, err := db.Query(`
		SELECT s.host_ns, s.stream, s.accepted, s.non_monotonic, s.subsampled, s.settling, s.malformed, s.unsynchronized
		FROM stream_stats s
		WHERE s.session_id = ?
		  AND s.host_ns = (SELECT MAX(host_ns) FROM stream_stats WHERE session_id = s.session_id AND stream = s.stream)
		ORDER BY s.stream`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StreamSnapshot{}
	for rows.Next() {
		var (
			s    StreamSnapshot
			name string
		)
		if err := rows.Scan(&s.HostNanos, &name, &s.Accepted, &s.NonMonotonic, &s.Subsampled, &s.Settling, &s.Malformed, &s.Unsynchronized); err != nil {
			return nil, err
		}
		k, err := stream.ParseKind(name)
		if err != nil {
			return nil, err
		}
		s.Stream = k
		out = append(out, s)
	}
	return out, rows.Err()
}
