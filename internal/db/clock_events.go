package db

import (
	"fmt"

	"github.com/banshee-data/depthsync/internal/clocksync"
)

// ClockEventRow is a stored calibration event.
type ClockEventRow struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Event     clocksync.Event `json:"event"`
}

// RecordClockEvent stores one calibration event.
func (db *DB) RecordClockEvent(sessionID string, ev clocksync.Event) error {
	_, err := db.Exec(
		`INSERT INTO clock_events (session_id, kind, device_ns, host_ns, offset_error_ns) VALUES (?, ?, ?, ?, ?)`,
		sessionID, ev.Kind.String(), ev.DeviceNanos, ev.HostNanos, ev.OffsetErrorNanos,
	)
	if err != nil {
		return fmt.Errorf("failed to insert clock event: %w", err)
	}
	return nil
}

// ClockEvents returns a session's events in host time order.
func (db *DB) ClockEvents(sessionID string) ([]ClockEventRow, error) {
	rows, err := db.Query(
		`SELECT event_id, kind, device_ns, host_ns, offset_error_ns FROM clock_events WHERE session_id = ? ORDER BY host_ns, event_id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ClockEventRow{}
	for rows.Next() {
		var (
			r    ClockEventRow
			kind string
		)
		if err := rows.Scan(&r.ID, &kind, &r.Event.DeviceNanos, &r.Event.HostNanos, &r.Event.OffsetErrorNanos); err != nil {
			return nil, err
		}
		k, err := clocksync.ParseEventKind(kind)
		if err != nil {
			return nil, err
		}
		r.SessionID = sessionID
		r.Event.Kind = k
		out = append(out, r)
	}
	return out, rows.Err()
}
