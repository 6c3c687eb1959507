package units

import (
	"math"
	"testing"
	"time"
)

func TestScaleNanos(t *testing.T) {
	tests := []struct {
		name     string
		scale    Scale
		expected int64
	}{
		{"milliseconds", Milliseconds, 1_000_000},
		{"microseconds", Microseconds, 1_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scale.Nanos(); got != tt.expected {
				t.Errorf("%s.Nanos() = %d, want %d", tt.scale, got, tt.expected)
			}
		})
	}
}

func TestScaleDuration(t *testing.T) {
	if got := Milliseconds.Duration(5); got != 5*time.Millisecond {
		t.Errorf("Milliseconds.Duration(5) = %v, want 5ms", got)
	}
	if got := Microseconds.Duration(250); got != 250*time.Microsecond {
		t.Errorf("Microseconds.Duration(250) = %v, want 250µs", got)
	}
}

func TestParseScale(t *testing.T) {
	tests := []struct {
		in       string
		expected Scale
		wantErr  bool
	}{
		{"ms", Milliseconds, false},
		{"MS", Milliseconds, false},
		{"us", Microseconds, false},
		{"µs", Microseconds, false},
		{"ns", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScale(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseScale(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScale(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.expected {
				t.Errorf("ParseScale(%q) = %v, want %v", tt.in, got, tt.expected)
			}
		})
	}
}

func TestScaleTextRoundTrip(t *testing.T) {
	for _, s := range []Scale{Milliseconds, Microseconds} {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", s, err)
		}
		var out Scale
		if err := out.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if out != s {
			t.Errorf("round trip %v -> %q -> %v", s, b, out)
		}
	}

	if _, err := Scale(9).MarshalText(); err == nil {
		t.Error("expected error marshalling invalid scale")
	}
}

func TestNanosToSeconds(t *testing.T) {
	if got := NanosToSeconds(1_500_000_000); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("NanosToSeconds = %f, want 1.5", got)
	}
}

func TestGetValidScalesString(t *testing.T) {
	expected := "ms, us"
	if got := GetValidScalesString(); got != expected {
		t.Errorf("GetValidScalesString() = %s, want %s", got, expected)
	}
}
