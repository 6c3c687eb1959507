// Package capture is the boundary to the camera's capture collaborator. It
// defines the two raw event shapes the driver consumes and the sources that
// produce them: a line-oriented bridge over a serial link and a simulator.
package capture

import (
	"fmt"
	"strings"

	"github.com/banshee-data/depthsync/internal/units"
)

// Sensor identifies which inertial sensor produced a motion sample.
type Sensor int

const (
	Accel Sensor = iota
	Gyro
)

func (s Sensor) String() string {
	switch s {
	case Accel:
		return "accel"
	case Gyro:
		return "gyro"
	}
	return fmt.Sprintf("sensor(%d)", int(s))
}

// MarshalText encodes the sensor by name.
func (s Sensor) MarshalText() ([]byte, error) {
	if s != Accel && s != Gyro {
		return nil, fmt.Errorf("invalid sensor %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a sensor name.
func (s *Sensor) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "accel", "accelerometer":
		*s = Accel
	case "gyro", "gyroscope":
		*s = Gyro
	default:
		return fmt.Errorf("unknown sensor %q", string(b))
	}
	return nil
}

// MotionEvent is one raw inertial sample as delivered by the device.
type MotionEvent struct {
	RawTicks uint64      `json:"ticks"`
	Scale    units.Scale `json:"scale"`
	Sensor   Sensor      `json:"sensor"`
	Axes     [3]float64  `json:"axes"`
}

// FrameEvent is one raw image as delivered by the device. StreamID is the
// vendor identifier, classified by the dispatcher.
type FrameEvent struct {
	RawTicks      uint64      `json:"ticks"`
	Scale         units.Scale `json:"scale"`
	StreamID      string      `json:"stream"`
	FrameNumber   uint64      `json:"frame"`
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	BytesPerPixel int         `json:"bpp"`
	Pixels        []byte      `json:"pixels"`
}

// Handler receives raw events. OnMotionEvent and OnFrameEvent may be
// called concurrently from different goroutines.
type Handler interface {
	OnMotionEvent(MotionEvent)
	OnFrameEvent(FrameEvent)
}
