// Package dispatch turns raw capture callbacks into published samples. For
// each event it validates the payload, maintains the device clock
// calibration, translates the device timestamp to host time, asks the
// admission policy whether to publish, and hands accepted samples to the
// bus. No error crosses back into the capture callback.
package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/depthsync/internal/admission"
	"github.com/banshee-data/depthsync/internal/bus"
	"github.com/banshee-data/depthsync/internal/capture"
	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/monitoring"
	"github.com/banshee-data/depthsync/internal/stream"
	"github.com/banshee-data/depthsync/internal/units"
)

// ErrMalformedPayload marks an event dropped for its content.
var ErrMalformedPayload = errors.New("malformed payload")

// Publisher receives accepted samples. bus.Bus satisfies it.
type Publisher interface {
	Publish(bus.Message) error
}

// Config selects which streams are live and how pointcloud inputs are
// assembled.
type Config struct {
	Enabled        [stream.NumKinds]bool
	ClockReference stream.Kind
	Pointcloud     bool
	// ColorFilter, when set, is attached to every PointcloudInput.
	ColorFilter *config.HSVBounds
}

// ConfigFromDriver derives the dispatcher configuration.
func ConfigFromDriver(cfg *config.DriverConfig) Config {
	c := Config{
		ClockReference: cfg.GetClockReference(),
		Pointcloud:     cfg.GetPointcloudEnabled(),
	}
	for _, k := range stream.All {
		c.Enabled[k] = cfg.Enabled(k)
	}
	if c.Pointcloud && cfg.GetPointcloudColorFilterEnabled() {
		b := cfg.GetHSVBounds()
		c.ColorFilter = &b
	}
	return c
}

type counters struct {
	malformed      atomic.Uint64
	unsynchronized atomic.Uint64
	disabled       atomic.Uint64
	publishFailed  atomic.Uint64
}

// Dispatcher implements capture.Handler.
type Dispatcher struct {
	translator *clocksync.Translator
	admit      *admission.Synchronizer
	pub        Publisher
	cfg        Config

	depth DepthFrameCache
	imu   imuCombiner

	pairMu        sync.Mutex
	lastColor     *Image
	lastPairFrame uint64
	paired        bool

	perKind      [stream.NumKinds]counters
	unclassified atomic.Uint64
	panics       atomic.Uint64
	pointclouds  atomic.Uint64
	ambiguous    atomic.Uint64
	accelFolded  atomic.Uint64
	gyroNoAccel  atomic.Uint64
}

// New wires a dispatcher to its collaborators.
func New(tr *clocksync.Translator, admit *admission.Synchronizer, pub Publisher, cfg Config) *Dispatcher {
	return &Dispatcher{
		translator: tr,
		admit:      admit,
		pub:        pub,
		cfg:        cfg,
	}
}

// DepthCache returns the cache of the latest accepted depth frame.
func (d *Dispatcher) DepthCache() *DepthFrameCache {
	return &d.depth
}

func (d *Dispatcher) recoverPanic(what string) {
	if r := recover(); r != nil {
		d.panics.Add(1)
		monitoring.Opsf("dispatch: recovered panic handling %s: %v", what, r)
	}
}

// OnMotionEvent handles one inertial reading. Accelerometer readings are
// held and folded into the next gyroscope reading, which is admitted and
// published as one MotionSample.
func (d *Dispatcher) OnMotionEvent(ev capture.MotionEvent) {
	defer d.recoverPanic("motion event")

	c := &d.perKind[stream.Motion]
	if !d.cfg.Enabled[stream.Motion] {
		c.disabled.Add(1)
		return
	}
	if err := validateMotion(ev); err != nil {
		c.malformed.Add(1)
		return
	}

	stamp, ok := d.stamp(stream.Motion, ev.RawTicks, ev.Scale)
	if !ok {
		return
	}
	if ev.Sensor == capture.Accel {
		d.imu.observeAccel(stamp, ev.Axes)
		d.accelFolded.Add(1)
		return
	}
	accel, ok := d.imu.accelAt(stamp)
	if !ok {
		d.gyroNoAccel.Add(1)
		return
	}
	if !d.admitted(stream.Motion, stamp) {
		return
	}
	d.publish(stream.Motion, bus.Message{
		Topic:   stream.TopicImu,
		Kind:    stream.Motion,
		Stamp:   stamp,
		Payload: MotionSample{Accel: accel, Gyro: ev.Axes},
	})
}

// OnFrameEvent classifies the frame by its stream identifier and handles it.
func (d *Dispatcher) OnFrameEvent(ev capture.FrameEvent) {
	kind, ok := stream.ClassifyStreamID(ev.StreamID)
	if !ok {
		d.unclassified.Add(1)
		if monitoring.TraceEnabled() {
			monitoring.Tracef("dispatch: dropping frame from unknown stream %q", ev.StreamID)
		}
		return
	}
	d.HandleFrame(ev, kind)
}

// HandleFrame handles one image frame of a known kind.
func (d *Dispatcher) HandleFrame(ev capture.FrameEvent, kind stream.Kind) {
	defer d.recoverPanic("frame event")

	if !kind.Valid() || kind == stream.Motion {
		d.unclassified.Add(1)
		return
	}
	c := &d.perKind[kind]
	if !d.cfg.Enabled[kind] {
		c.disabled.Add(1)
		return
	}
	if err := validateFrame(ev); err != nil {
		c.malformed.Add(1)
		return
	}

	stamp, ok := d.stamp(kind, ev.RawTicks, ev.Scale)
	if !ok {
		return
	}
	if !d.admitted(kind, stamp) {
		return
	}

	img := imageOf(ev)
	if kind == stream.Depth {
		d.depth.store(DepthFrame{Image: img, Stamp: stamp})
	}
	d.publish(kind, bus.Message{Topic: kind.Topic(), Kind: kind, Stamp: stamp, Payload: img})

	if d.cfg.Pointcloud && (kind == stream.Depth || kind == stream.Color) {
		d.pair(kind, img, stamp)
	}
}

// stamp feeds the reference stream into the translator and translates the
// device reading. A false result means the event has been dropped.
func (d *Dispatcher) stamp(kind stream.Kind, raw uint64, scale units.Scale) (clocksync.HostTimestamp, bool) {
	if kind == d.cfg.ClockReference {
		if err := d.translator.Update(raw, scale); err != nil {
			if errors.Is(err, clocksync.ErrWraparoundAmbiguous) {
				d.ambiguous.Add(1)
				monitoring.Diagf("dispatch: %s: %v; re-anchored", kind, err)
			} else {
				d.perKind[kind].malformed.Add(1)
				return 0, false
			}
		}
	}

	stamp, err := d.translator.Translate(raw, scale)
	if err != nil {
		if errors.Is(err, clocksync.ErrUnsynchronized) {
			d.perKind[kind].unsynchronized.Add(1)
			monitoring.Opsf("dispatch: dropping %s sample: %v", kind, err)
		} else {
			d.perKind[kind].malformed.Add(1)
		}
		return 0, false
	}
	return stamp, true
}

func (d *Dispatcher) admitted(kind stream.Kind, stamp clocksync.HostTimestamp) bool {
	decision := d.admit.Admit(kind, stamp.Seconds())
	if !decision.Accepted() && monitoring.TraceEnabled() {
		monitoring.Tracef("dispatch: %s at %.6fs: %s", kind, stamp.Seconds(), decision)
	}
	return decision.Accepted()
}

func (d *Dispatcher) publish(kind stream.Kind, m bus.Message) {
	if err := d.pub.Publish(m); err != nil {
		// Publishing during teardown is expected to fail.
		d.perKind[kind].publishFailed.Add(1)
		if monitoring.TraceEnabled() {
			monitoring.Tracef("dispatch: publish %s: %v", m.Topic, err)
		}
	}
}

// pair emits a PointcloudInput once per frame number when the accepted
// depth and color frames carry the same number, whichever arrives second.
func (d *Dispatcher) pair(kind stream.Kind, img Image, stamp clocksync.HostTimestamp) {
	d.pairMu.Lock()
	var depth DepthFrame
	var color Image
	ready := false
	switch kind {
	case stream.Color:
		d.lastColor = &img
		if cached, ok := d.depth.Latest(); ok && cached.FrameNumber == img.FrameNumber {
			depth, color, ready = cached, img, true
		}
	case stream.Depth:
		if d.lastColor != nil && d.lastColor.FrameNumber == img.FrameNumber {
			depth, color, ready = DepthFrame{Image: img, Stamp: stamp}, *d.lastColor, true
		}
	}
	if ready && d.paired && d.lastPairFrame == depth.FrameNumber {
		ready = false
	}
	if ready {
		d.paired, d.lastPairFrame = true, depth.FrameNumber
	}
	d.pairMu.Unlock()

	if !ready {
		return
	}
	d.pointclouds.Add(1)
	d.publish(stream.Depth, bus.Message{
		Topic: stream.TopicPointcloud,
		Kind:  stream.Depth,
		Stamp: depth.Stamp,
		Payload: PointcloudInput{
			FrameNumber: depth.FrameNumber,
			DepthStamp:  depth.Stamp,
			Depth:       depth.Image,
			Color:       color,
			ColorFilter: d.cfg.ColorFilter,
		},
	})
}

// StreamStats combines admission outcomes with dispatch-level drops.
type StreamStats struct {
	admission.Stats
	Malformed      uint64          `json:"malformed"`
	Unsynchronized uint64          `json:"unsynchronized"`
	Disabled       uint64          `json:"disabled"`
	PublishFailed  uint64          `json:"publish_failed"`
	State          admission.State `json:"state"`
}

// Stats is a snapshot of dispatch counters.
type Stats struct {
	Streams      map[stream.Kind]StreamStats `json:"streams"`
	Unclassified uint64                      `json:"unclassified"`
	Panics       uint64                      `json:"panics"`
	Pointclouds  uint64                      `json:"pointclouds"`
	Ambiguous    uint64                      `json:"ambiguous_wraps"`
	AccelFolded  uint64                      `json:"accel_folded"`
	GyroNoAccel  uint64                      `json:"gyro_without_accel"`
}

// Stats returns per-stream and global counters.
func (d *Dispatcher) Stats() Stats {
	adm := d.admit.Stats()
	out := Stats{
		Streams:      make(map[stream.Kind]StreamStats, stream.NumKinds),
		Unclassified: d.unclassified.Load(),
		Panics:       d.panics.Load(),
		Pointclouds:  d.pointclouds.Load(),
		Ambiguous:    d.ambiguous.Load(),
		AccelFolded:  d.accelFolded.Load(),
		GyroNoAccel:  d.gyroNoAccel.Load(),
	}
	for _, k := range stream.All {
		c := &d.perKind[k]
		out.Streams[k] = StreamStats{
			Stats:          adm[k],
			Malformed:      c.malformed.Load(),
			Unsynchronized: c.unsynchronized.Load(),
			Disabled:       c.disabled.Load(),
			PublishFailed:  c.publishFailed.Load(),
			State:          d.admit.State(k),
		}
	}
	return out
}

func (s StreamStats) String() string {
	return fmt.Sprintf("accepted=%d dropped=%d malformed=%d unsynchronized=%d",
		s.Accepted, s.Dropped(), s.Malformed, s.Unsynchronized)
}
