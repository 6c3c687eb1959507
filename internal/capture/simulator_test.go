package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/stream"
	"github.com/banshee-data/depthsync/internal/timeutil"
	"github.com/banshee-data/depthsync/internal/units"
)

var simEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSimulatorMotionCadence(t *testing.T) {
	clock := timeutil.NewMockClock(simEpoch)
	sim, err := NewSimulator(SimulatorConfig{Clock: clock, Scale: units.Milliseconds, MotionRateHz: 200})
	require.NoError(t, err)

	rec := &recorder{}
	clock.Advance(time.Second)
	n := sim.StepMotion(clock.Now(), rec)

	// Gyro at 0, 5, ..., 1000 ms and accel at 0, 4, ..., 1000 ms inclusive.
	assert.Equal(t, 201+251, n)
	require.Len(t, rec.motion, n)

	type reading struct {
		ticks  uint64
		sensor Sensor
	}
	var head []reading
	for _, m := range rec.motion[:4] {
		head = append(head, reading{m.RawTicks, m.Sensor})
	}
	assert.Equal(t, []reading{{0, Accel}, {0, Gyro}, {4, Accel}, {5, Gyro}}, head)

	counts := map[Sensor]int{}
	shared := 0
	for i, m := range rec.motion {
		counts[m.Sensor]++
		if i > 0 {
			assert.GreaterOrEqual(t, m.RawTicks, rec.motion[i-1].RawTicks)
			if m.RawTicks == rec.motion[i-1].RawTicks {
				shared++
			}
		}
	}
	assert.Equal(t, 201, counts[Gyro])
	assert.Equal(t, 251, counts[Accel])
	// Every 20 ms both sensors fire on the same tick.
	assert.Equal(t, 51, shared)

	// Nothing further is due at the same instant.
	assert.Equal(t, 0, sim.StepMotion(clock.Now(), rec))
}

func TestSimulatorCounterWraps(t *testing.T) {
	clock := timeutil.NewMockClock(simEpoch)
	sim, err := NewSimulator(SimulatorConfig{Clock: clock, Scale: units.Milliseconds, CounterBits: 8, StartTicks: 250, MotionRateHz: 200})
	require.NoError(t, err)

	assert.Equal(t, uint64(250), sim.DeviceTicks(simEpoch))
	assert.Equal(t, uint64(255), sim.DeviceTicks(simEpoch.Add(5*time.Millisecond)))
	assert.Equal(t, uint64(4), sim.DeviceTicks(simEpoch.Add(10*time.Millisecond)))
}

func TestSimulatorDrift(t *testing.T) {
	clock := timeutil.NewMockClock(simEpoch)
	sim, err := NewSimulator(SimulatorConfig{Clock: clock, Scale: units.Microseconds, DriftPPM: 100})
	require.NoError(t, err)

	// 100 ppm fast over 10 s is 1 ms.
	assert.InDelta(t, 10_001_000, float64(sim.DeviceTicks(simEpoch.Add(10*time.Second))), 1)
}

func TestSimulatorFrames(t *testing.T) {
	clock := timeutil.NewMockClock(simEpoch)
	cfg := config.DefaultDriverConfig()
	sc := NewSimulatorConfig(cfg, clock)
	sc.MotionRateHz = 0
	sim, err := NewSimulator(sc)
	require.NoError(t, err)

	rec := &recorder{}
	clock.Advance(time.Second)
	sim.StepFrames(clock.Now(), rec)

	perStream := map[string][]FrameEvent{}
	for _, f := range rec.frames {
		perStream[f.StreamID] = append(perStream[f.StreamID], f)
	}
	assert.Len(t, perStream, 5)
	for id, frames := range perStream {
		kind, ok := stream.ClassifyStreamID(id)
		require.True(t, ok, id)
		// Frames at k*33.3ms for k = 0..30.
		assert.Len(t, frames, 31, id)
		assert.Equal(t, uint64(1), frames[0].FrameNumber)
		assert.Equal(t, uint64(31), frames[30].FrameNumber)
		assert.Equal(t, bytesPerPixel(kind), frames[0].BytesPerPixel)
		assert.Len(t, frames[0].Pixels, 640*480*bytesPerPixel(kind))
	}
}

func TestSimulatorConfigFromDriver(t *testing.T) {
	cfg := config.EmptyDriverConfig()
	off := false
	cfg.ImuEnabled = &off
	cfg.ColorEnabled = &off

	sc := NewSimulatorConfig(cfg, nil)
	assert.Zero(t, sc.MotionRateHz)
	assert.Equal(t, uint(32), sc.CounterBits)
	var kinds []stream.Kind
	for _, s := range sc.Streams {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []stream.Kind{stream.Fisheye, stream.Infrared1, stream.Infrared2, stream.Depth}, kinds)
}

func TestSimulatorValidation(t *testing.T) {
	_, err := NewSimulator(SimulatorConfig{CounterBits: 64})
	assert.Error(t, err)
	_, err = NewSimulator(SimulatorConfig{Scale: units.Scale(7)})
	assert.Error(t, err)
	_, err = NewSimulator(SimulatorConfig{Scale: units.Milliseconds, MotionRateHz: 200, AccelRateHz: -1})
	assert.Error(t, err)
	_, err = NewSimulator(SimulatorConfig{Streams: []config.StreamSettings{{Kind: stream.Depth, Enabled: true}}})
	assert.Error(t, err)
}

func TestSimulatorRunStopsOnCancel(t *testing.T) {
	clock := timeutil.NewMockClock(simEpoch)
	sim, err := NewSimulator(SimulatorConfig{Clock: clock, Scale: units.Milliseconds, MotionRateHz: 200})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, &recorder{}) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
