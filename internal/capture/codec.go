package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRecord is returned by DecodeLine for records whose type is not
// motion or frame.
var ErrUnknownRecord = errors.New("unknown capture record type")

// RecordType tags each JSON line written by the capture bridge.
type RecordType string

const (
	RecordMotion RecordType = "motion"
	RecordFrame  RecordType = "frame"
	// RecordStatus lines are bridge chatter (acknowledgements, errors) and
	// carry no sample.
	RecordStatus RecordType = "status"
)

type envelope struct {
	Type RecordType `json:"type"`
}

// Record is one decoded line. Exactly one of Motion and Frame is set for
// sample records.
type Record struct {
	Type   RecordType
	Motion *MotionEvent
	Frame  *FrameEvent
	Status string
}

// DecodeLine parses one JSON line from the capture bridge.
func DecodeLine(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, fmt.Errorf("empty line")
	}
	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return Record{}, fmt.Errorf("failed to parse record envelope: %w", err)
	}

	switch env.Type {
	case RecordMotion:
		var m MotionEvent
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return Record{}, fmt.Errorf("failed to parse motion record: %w", err)
		}
		return Record{Type: RecordMotion, Motion: &m}, nil
	case RecordFrame:
		var f FrameEvent
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return Record{}, fmt.Errorf("failed to parse frame record: %w", err)
		}
		return Record{Type: RecordFrame, Frame: &f}, nil
	case RecordStatus:
		var s struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return Record{}, fmt.Errorf("failed to parse status record: %w", err)
		}
		return Record{Type: RecordStatus, Status: s.Message}, nil
	}
	return Record{}, fmt.Errorf("%w: %q", ErrUnknownRecord, env.Type)
}

// EncodeMotion renders a motion event as a bridge line, without the
// trailing newline.
func EncodeMotion(m MotionEvent) ([]byte, error) {
	return json.Marshal(struct {
		Type RecordType `json:"type"`
		MotionEvent
	}{RecordMotion, m})
}

// EncodeFrame renders a frame event as a bridge line, without the trailing
// newline.
func EncodeFrame(f FrameEvent) ([]byte, error) {
	return json.Marshal(struct {
		Type RecordType `json:"type"`
		FrameEvent
	}{RecordFrame, f})
}
