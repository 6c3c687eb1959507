package dispatch

import (
	"fmt"
	"math"

	"github.com/banshee-data/depthsync/internal/capture"
	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/config"
)

// MotionSample is the payload published on the imu topic: one gyroscope
// reading with the accelerometer value at the same instant.
type MotionSample struct {
	Accel [3]float64 `json:"accel"`
	Gyro  [3]float64 `json:"gyro"`
}

func (m MotionSample) Describe() string {
	return fmt.Sprintf("accel %.3f %.3f %.3f gyro %.3f %.3f %.3f",
		m.Accel[0], m.Accel[1], m.Accel[2], m.Gyro[0], m.Gyro[1], m.Gyro[2])
}

// Image is the payload published on the image topics. Pixels is shared with
// every subscriber and the depth cache and must not be modified.
type Image struct {
	FrameNumber   uint64 `json:"frame_number"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	BytesPerPixel int    `json:"bytes_per_pixel"`
	Pixels        []byte `json:"-"`
}

func (i Image) Describe() string {
	return fmt.Sprintf("frame %d %dx%dx%d", i.FrameNumber, i.Width, i.Height, i.BytesPerPixel)
}

// PointcloudInput pairs a depth map with the color frame of the same frame
// number. Projection happens downstream.
type PointcloudInput struct {
	FrameNumber uint64                  `json:"frame_number"`
	DepthStamp  clocksync.HostTimestamp `json:"depth_stamp_ns"`
	Depth       Image                   `json:"depth"`
	Color       Image                   `json:"color"`

	// ColorFilter is set when points outside the HSV box are to be dropped.
	ColorFilter *config.HSVBounds `json:"color_filter,omitempty"`
}

func (p PointcloudInput) Describe() string {
	s := fmt.Sprintf("frame %d depth %dx%d color %dx%d", p.FrameNumber, p.Depth.Width, p.Depth.Height, p.Color.Width, p.Color.Height)
	if p.ColorFilter != nil {
		s += " filtered"
	}
	return s
}

func validateMotion(ev capture.MotionEvent) error {
	if !ev.Scale.IsValid() {
		return fmt.Errorf("%w: invalid clock scale %d", ErrMalformedPayload, int(ev.Scale))
	}
	if ev.Sensor != capture.Accel && ev.Sensor != capture.Gyro {
		return fmt.Errorf("%w: unknown sensor %d", ErrMalformedPayload, int(ev.Sensor))
	}
	for _, v := range ev.Axes {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite axis value", ErrMalformedPayload)
		}
	}
	return nil
}

func validateFrame(ev capture.FrameEvent) error {
	if !ev.Scale.IsValid() {
		return fmt.Errorf("%w: invalid clock scale %d", ErrMalformedPayload, int(ev.Scale))
	}
	if ev.Width <= 0 || ev.Height <= 0 || ev.BytesPerPixel <= 0 {
		return fmt.Errorf("%w: bad geometry %dx%dx%d", ErrMalformedPayload, ev.Width, ev.Height, ev.BytesPerPixel)
	}
	if want := ev.Width * ev.Height * ev.BytesPerPixel; len(ev.Pixels) != want {
		return fmt.Errorf("%w: %d pixel bytes, want %d", ErrMalformedPayload, len(ev.Pixels), want)
	}
	return nil
}

func imageOf(ev capture.FrameEvent) Image {
	return Image{
		FrameNumber:   ev.FrameNumber,
		Width:         ev.Width,
		Height:        ev.Height,
		BytesPerPixel: ev.BytesPerPixel,
		Pixels:        ev.Pixels,
	}
}
