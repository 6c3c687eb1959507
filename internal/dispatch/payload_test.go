package dispatch

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/depthsync/internal/capture"
	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/units"
)

func TestValidateMotion(t *testing.T) {
	assert.NoError(t, validateMotion(capture.MotionEvent{Scale: units.Microseconds}))

	err := validateMotion(capture.MotionEvent{Scale: units.Milliseconds, Axes: [3]float64{0, math.NaN(), 0}})
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	err = validateMotion(capture.MotionEvent{Scale: units.Milliseconds, Axes: [3]float64{math.Inf(1), 0, 0}})
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	err = validateMotion(capture.MotionEvent{Scale: units.Milliseconds, Sensor: capture.Sensor(7)})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestValidateFrame(t *testing.T) {
	ok := frameEvent("depth", 1, 1)
	assert.NoError(t, validateFrame(ok))

	for name, mutate := range map[string]func(*capture.FrameEvent){
		"zero width":   func(f *capture.FrameEvent) { f.Width = 0 },
		"negative bpp": func(f *capture.FrameEvent) { f.BytesPerPixel = -1 },
		"short buffer": func(f *capture.FrameEvent) { f.Pixels = f.Pixels[:3] },
		"empty":        func(f *capture.FrameEvent) { f.Pixels = nil },
	} {
		ev := frameEvent("depth", 1, 1)
		mutate(&ev)
		assert.ErrorIs(t, validateFrame(ev), ErrMalformedPayload, name)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "frame 3 640x480x2", Image{FrameNumber: 3, Width: 640, Height: 480, BytesPerPixel: 2}.Describe())
	assert.Equal(t, "accel 0.000 0.000 9.810 gyro 0.100 0.200 0.300",
		MotionSample{Accel: [3]float64{0, 0, 9.81}, Gyro: [3]float64{0.1, 0.2, 0.3}}.Describe())

	pc := PointcloudInput{FrameNumber: 9, Depth: Image{Width: 4, Height: 3}, Color: Image{Width: 8, Height: 6}}
	assert.Equal(t, "frame 9 depth 4x3 color 8x6", pc.Describe())
	pc.ColorFilter = &config.HSVBounds{}
	assert.Equal(t, "frame 9 depth 4x3 color 8x6 filtered", pc.Describe())
}

func TestDepthFrameCacheEmpty(t *testing.T) {
	var c DepthFrameCache
	_, ok := c.Latest()
	assert.False(t, ok)

	c.store(DepthFrame{Image: Image{FrameNumber: 5}, Stamp: 12})
	f, ok := c.Latest()
	assert.True(t, ok)
	assert.Equal(t, uint64(5), f.FrameNumber)
	assert.EqualValues(t, 12, f.Stamp)
}
