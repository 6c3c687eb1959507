package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the driver.
type Session struct {
	ID         string          `json:"session_id"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	Source     string          `json:"source"`
	Version    string          `json:"version"`
	ConfigJSON json.RawMessage `json:"config"`
}

// StartSession records a new session and returns it. cfg is stored as JSON.
func (db *DB) StartSession(startedAt time.Time, source, version string, cfg any) (*Session, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session config: %w", err)
	}
	s := &Session{
		ID:         uuid.NewString(),
		StartedAt:  startedAt.UTC(),
		Source:     source,
		Version:    version,
		ConfigJSON: cfgJSON,
	}
	_, err = db.Exec(
		`INSERT INTO sessions (session_id, started_unix_ns, source, version, config_json) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), s.Source, s.Version, string(cfgJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// EndSession stamps the session end time.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix_ns = ? WHERE session_id = ?`, endedAt.UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
		cfg     string
	)
	if err := row.Scan(&s.ID, &started, &ended, &s.Source, &s.Version, &cfg); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	s.ConfigJSON = json.RawMessage(cfg)
	return &s, nil
}

// GetSession returns one session by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`SELECT session_id, started_unix_ns, ended_unix_ns, source, version, config_json FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// ListSessions returns the most recent sessions first. A non-positive limit
// means 50.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT session_id, started_unix_ns, ended_unix_ns, source, version, config_json FROM sessions ORDER BY started_unix_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
