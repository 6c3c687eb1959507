// Package units provides the device clock unit scales and their conversion
// to nanoseconds.
package units

import (
	"fmt"
	"strings"
	"time"
)

// Scale is the unit of one device clock tick.
type Scale int

// Unit constants
const (
	Milliseconds Scale = iota
	Microseconds
)

// Conversion factors from one tick to nanoseconds.
const (
	MillisecondsToNanoseconds int64 = 1e6
	MicrosecondsToNanoseconds int64 = 1e3
	SecondsToNanoseconds      int64 = 1e9
)

// ValidScales contains all valid scale names
var ValidScales = []string{"ms", "us"}

// IsValid checks if the given scale is one of the declared scales
func (s Scale) IsValid() bool {
	return s == Milliseconds || s == Microseconds
}

// Nanos returns the number of nanoseconds in one tick.
func (s Scale) Nanos() int64 {
	switch s {
	case Microseconds:
		return MicrosecondsToNanoseconds
	default:
		return MillisecondsToNanoseconds
	}
}

// Duration returns the duration of n ticks.
func (s Scale) Duration(n uint64) time.Duration {
	return time.Duration(int64(n) * s.Nanos())
}

func (s Scale) String() string {
	switch s {
	case Milliseconds:
		return "ms"
	case Microseconds:
		return "us"
	default:
		return fmt.Sprintf("scale(%d)", int(s))
	}
}

// ParseScale accepts "ms" or "us" (also "µs").
func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ms", "msec", "milliseconds":
		return Milliseconds, nil
	case "us", "µs", "usec", "microseconds":
		return Microseconds, nil
	}
	return 0, fmt.Errorf("unknown clock scale %q: expected one of %s", s, GetValidScalesString())
}

// GetValidScalesString returns a comma-separated string of valid scales for error messages
func GetValidScalesString() string {
	return strings.Join(ValidScales, ", ")
}

// MarshalText encodes the scale by name.
func (s Scale) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid clock scale %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scale name.
func (s *Scale) UnmarshalText(b []byte) error {
	parsed, err := ParseScale(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NanosToSeconds converts nanoseconds to floating point seconds.
func NanosToSeconds(ns int64) float64 {
	return float64(ns) / float64(SecondsToNanoseconds)
}
