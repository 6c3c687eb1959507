package clocksync

import "fmt"

// EventKind classifies calibration events.
type EventKind int

const (
	// EventCalibrated marks the first reference pair.
	EventCalibrated EventKind = iota
	// EventResynchronized marks a re-anchor after the offset error left
	// the drift tolerance band.
	EventResynchronized
	// EventWrapped marks a detected counter rollover.
	EventWrapped
	// EventAmbiguous marks a re-anchor after a gap longer than a full
	// counter period.
	EventAmbiguous
)

func (k EventKind) String() string {
	switch k {
	case EventCalibrated:
		return "calibrated"
	case EventResynchronized:
		return "resynchronized"
	case EventWrapped:
		return "wrapped"
	case EventAmbiguous:
		return "ambiguous"
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseEventKind decodes a kind name.
func ParseEventKind(s string) (EventKind, error) {
	for k := EventCalibrated; k <= EventAmbiguous; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown clock event kind %q", s)
}

// UnmarshalText decodes a kind name.
func (k *EventKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event describes one calibration change observed by Update.
type Event struct {
	Kind             EventKind `json:"kind"`
	DeviceNanos      int64     `json:"device_nanos"`
	HostNanos        int64     `json:"host_nanos"`
	OffsetErrorNanos int64     `json:"offset_error_nanos"`
}
