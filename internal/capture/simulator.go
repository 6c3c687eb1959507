package capture

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/stream"
	"github.com/banshee-data/depthsync/internal/timeutil"
	"github.com/banshee-data/depthsync/internal/units"
)

// Inertial rates of the simulated device. Both sensors share the device
// clock, so every fifth gyro tick coincides with an accel tick.
const (
	DefaultMotionRateHz = 200
	DefaultAccelRateHz  = 250
)

// SimulatorConfig describes the simulated device.
type SimulatorConfig struct {
	// Clock drives the simulation. Nil means the real clock.
	Clock timeutil.Clock
	// Scale is the device tick unit.
	Scale units.Scale
	// CounterBits is the width of the device counter; small widths force
	// early wraparound. Zero means 32.
	CounterBits uint
	// StartTicks is the counter value at simulation start.
	StartTicks uint64
	// DriftPPM makes the device oscillator run fast (positive) or slow.
	DriftPPM float64
	// MotionRateHz is the gyroscope rate; zero disables motion.
	MotionRateHz float64
	// AccelRateHz is the accelerometer rate. Zero means
	// DefaultAccelRateHz while motion is enabled.
	AccelRateHz float64
	// Streams lists the frame streams; disabled entries are ignored.
	Streams []config.StreamSettings
}

// NewSimulatorConfig derives a simulator from the driver configuration.
func NewSimulatorConfig(cfg *config.DriverConfig, clock timeutil.Clock) SimulatorConfig {
	sc := SimulatorConfig{
		Clock:       clock,
		Scale:       units.Milliseconds,
		CounterBits: cfg.GetClockCounterBits(),
	}
	if cfg.GetImuEnabled() {
		sc.MotionRateHz = DefaultMotionRateHz
	}
	for _, k := range stream.All {
		if k == stream.Motion {
			continue
		}
		if s := cfg.StreamSettings(k); s.Enabled {
			sc.Streams = append(sc.Streams, s)
		}
	}
	return sc
}

type simStream struct {
	shape  frameShape
	period time.Duration
	next   time.Time
	frame  uint64
	pixels []byte
}

type frameShape struct {
	ID            string
	Width, Height int
	FPS           int
	BytesPerPixel int
}

// Simulator produces device-like motion and frame events. Motion and
// frames are stepped independently so they can run on separate goroutines.
type Simulator struct {
	cfg   SimulatorConfig
	clock timeutil.Clock
	start time.Time
	mask  uint64

	motionMu    sync.Mutex
	gyroPeriod  time.Duration
	accelPeriod time.Duration
	nextGyro    time.Time
	nextAccel   time.Time

	frameMu sync.Mutex
	streams []*simStream
}

func bytesPerPixel(k stream.Kind) int {
	switch k {
	case stream.Depth:
		return 2 // z16
	case stream.Color:
		return 3 // rgb8
	default:
		return 1 // raw8 / y8
	}
}

// NewSimulator builds a simulator starting at the clock's current time.
func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.CounterBits == 0 {
		cfg.CounterBits = 32
	}
	if cfg.CounterBits > 63 {
		return nil, fmt.Errorf("counter bits must be at most 63, got %d", cfg.CounterBits)
	}
	if !cfg.Scale.IsValid() {
		return nil, fmt.Errorf("invalid clock scale %d", int(cfg.Scale))
	}
	if cfg.MotionRateHz < 0 {
		return nil, fmt.Errorf("motion rate must be non-negative, got %f", cfg.MotionRateHz)
	}
	if cfg.AccelRateHz < 0 {
		return nil, fmt.Errorf("accel rate must be non-negative, got %f", cfg.AccelRateHz)
	}
	if cfg.MotionRateHz > 0 && cfg.AccelRateHz == 0 {
		cfg.AccelRateHz = DefaultAccelRateHz
	}

	now := cfg.Clock.Now()
	s := &Simulator{
		cfg:   cfg,
		clock: cfg.Clock,
		start: now,
		mask:  uint64(1)<<cfg.CounterBits - 1,
	}
	if cfg.MotionRateHz > 0 {
		s.gyroPeriod = time.Duration(float64(time.Second) / cfg.MotionRateHz)
		s.accelPeriod = time.Duration(float64(time.Second) / cfg.AccelRateHz)
		s.nextGyro, s.nextAccel = now, now
	}
	for _, st := range cfg.Streams {
		if !st.Enabled || st.Kind == stream.Motion {
			continue
		}
		if st.FPS <= 0 {
			return nil, fmt.Errorf("stream %s: fps must be positive, got %d", st.Kind, st.FPS)
		}
		view := frameShape{
			ID:            st.Kind.String(),
			Width:         st.Width,
			Height:        st.Height,
			FPS:           st.FPS,
			BytesPerPixel: bytesPerPixel(st.Kind),
		}
		s.streams = append(s.streams, &simStream{
			shape:  view,
			period: time.Second / time.Duration(st.FPS),
			next:   now,
			pixels: syntheticPixels(view),
		})
	}
	return s, nil
}

// syntheticPixels builds one read-only gradient image per stream.
func syntheticPixels(v frameShape) []byte {
	buf := make([]byte, v.Width*v.Height*v.BytesPerPixel)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	return buf
}

// DeviceTicks returns the wrapped device counter reading at t.
func (s *Simulator) DeviceTicks(t time.Time) uint64 {
	elapsed := float64(t.Sub(s.start).Nanoseconds()) * (1 + s.cfg.DriftPPM*1e-6)
	ticks := s.cfg.StartTicks + uint64(elapsed/float64(s.cfg.Scale.Nanos()))
	return ticks & s.mask
}

// StepMotion emits every accel and gyro reading due at or before now in
// device time order, accel first when both fall on the same instant, and
// returns how many were emitted.
func (s *Simulator) StepMotion(now time.Time, h Handler) int {
	if s.gyroPeriod == 0 {
		return 0
	}
	s.motionMu.Lock()
	defer s.motionMu.Unlock()

	n := 0
	for {
		sensor, at := Accel, s.nextAccel
		if s.nextGyro.Before(at) {
			sensor, at = Gyro, s.nextGyro
		}
		if at.After(now) {
			return n
		}
		phase := at.Sub(s.start).Seconds()
		ev := MotionEvent{RawTicks: s.DeviceTicks(at), Scale: s.cfg.Scale, Sensor: sensor}
		if sensor == Accel {
			ev.Axes = [3]float64{0.2 * math.Sin(phase), 0.2 * math.Cos(phase), 9.81}
			s.nextAccel = at.Add(s.accelPeriod)
		} else {
			ev.Axes = [3]float64{0.05 * math.Cos(phase), 0, 0.1 * math.Sin(phase)}
			s.nextGyro = at.Add(s.gyroPeriod)
		}
		h.OnMotionEvent(ev)
		n++
	}
}

// StepFrames emits every frame due at or before now and returns how many
// were emitted.
func (s *Simulator) StepFrames(now time.Time, h Handler) int {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	n := 0
	for _, st := range s.streams {
		for !st.next.After(now) {
			at := st.next
			st.frame++
			h.OnFrameEvent(FrameEvent{
				RawTicks:      s.DeviceTicks(at),
				Scale:         s.cfg.Scale,
				StreamID:      st.shape.ID,
				FrameNumber:   st.frame,
				Width:         st.shape.Width,
				Height:        st.shape.Height,
				BytesPerPixel: st.shape.BytesPerPixel,
				Pixels:        st.pixels,
			})
			st.next = at.Add(st.period)
			n++
		}
	}
	return n
}

// Run steps motion and frames on two goroutines until ctx is done. No
// handler call is in flight once Run returns.
func (s *Simulator) Run(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	loop := func(period time.Duration, step func(time.Time, Handler) int) {
		defer wg.Done()
		ticker := s.clock.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C():
				step(now, h)
			}
		}
	}

	if s.gyroPeriod > 0 {
		wg.Add(1)
		go loop(min(s.gyroPeriod, s.accelPeriod), s.StepMotion)
	}
	if len(s.streams) > 0 {
		// Frames are scheduled per stream; a 5ms tick keeps their jitter
		// within a few milliseconds.
		wg.Add(1)
		go loop(5*time.Millisecond, s.StepFrames)
	}
	wg.Wait()
	return ctx.Err()
}
