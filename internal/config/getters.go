package config

import (
	"time"

	"github.com/banshee-data/depthsync/internal/admission"
	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/stream"
)

// Getter methods return the configured value or the driver default when the
// field is unset.

func (c *DriverConfig) GetImuEnabled() bool {
	if c.ImuEnabled == nil {
		return true
	}
	return *c.ImuEnabled
}

func (c *DriverConfig) GetSkipFirstMotionSamples() uint32 {
	if c.SkipFirstMotionSamples == nil {
		return admission.DefaultSkipFirstMotionSamples
	}
	return uint32(*c.SkipFirstMotionSamples)
}

func (c *DriverConfig) GetFisheyeEnabled() bool {
	if c.FisheyeEnabled == nil {
		return true
	}
	return *c.FisheyeEnabled
}

func (c *DriverConfig) GetFisheyeEnableAutoExposure() bool {
	if c.FisheyeEnableAutoExposure == nil {
		return true
	}
	return *c.FisheyeEnableAutoExposure
}

func (c *DriverConfig) GetFisheyeExposureMs() float64 {
	if c.FisheyeExposureMs == nil {
		return 25
	}
	return *c.FisheyeExposureMs
}

func (c *DriverConfig) GetFisheyeGain() float64 {
	if c.FisheyeGain == nil {
		return 9
	}
	return *c.FisheyeGain
}

func (c *DriverConfig) GetColorEnabled() bool {
	if c.ColorEnabled == nil {
		return true
	}
	return *c.ColorEnabled
}

func (c *DriverConfig) GetDepthEnabled() bool {
	if c.DepthEnabled == nil {
		return true
	}
	return *c.DepthEnabled
}

func (c *DriverConfig) GetDepthMedianFilterEnabled() bool {
	return c.DepthMedianFilterEnabled != nil && *c.DepthMedianFilterEnabled
}

func (c *DriverConfig) GetDepthMinMaxFilterEnabled() bool {
	return c.DepthMinMaxFilterEnabled != nil && *c.DepthMinMaxFilterEnabled
}

func (c *DriverConfig) GetDepthMinMaxFilterSize() int {
	if c.DepthMinMaxFilterSize == nil {
		return 3
	}
	return *c.DepthMinMaxFilterSize
}

func (c *DriverConfig) GetDepthMinMaxFilterThreshold() float64 {
	if c.DepthMinMaxFilterThreshold == nil {
		return 0.3
	}
	return *c.DepthMinMaxFilterThreshold
}

func (c *DriverConfig) GetDepthControlPreset() DepthPreset {
	if c.DepthControlPreset == nil || *c.DepthControlPreset == "" {
		return DepthPresetHigh
	}
	p, err := ParseDepthPreset(*c.DepthControlPreset)
	if err != nil {
		return DepthPresetHigh
	}
	return p
}

func (c *DriverConfig) GetInfraredEnabled() bool {
	if c.InfraredEnabled == nil {
		return true
	}
	return *c.InfraredEnabled
}

func (c *DriverConfig) GetPointcloudEnabled() bool {
	if c.PointcloudEnabled == nil {
		return true
	}
	return *c.PointcloudEnabled
}

func (c *DriverConfig) GetPointcloudColorFilterEnabled() bool {
	return c.PointcloudColorFilterEnabled != nil && *c.PointcloudColorFilterEnabled
}

// HSV is one corner of the pointcloud colour filter box.
type HSV struct {
	H int `json:"h"`
	S int `json:"s"`
	V int `json:"v"`
}

// HSVBounds is the inclusive colour range kept by the pointcloud filter.
type HSVBounds struct {
	Min HSV `json:"min"`
	Max HSV `json:"max"`
}

// Contains reports whether p lies inside the bounds.
func (b HSVBounds) Contains(p HSV) bool {
	return p.H >= b.Min.H && p.H <= b.Max.H &&
		p.S >= b.Min.S && p.S <= b.Max.S &&
		p.V >= b.Min.V && p.V <= b.Max.V
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (c *DriverConfig) GetHSVBounds() HSVBounds {
	return HSVBounds{
		Min: HSV{H: intOr(c.PointcloudHSVMinH, 0), S: intOr(c.PointcloudHSVMinS, 0), V: intOr(c.PointcloudHSVMinV, 0)},
		Max: HSV{H: intOr(c.PointcloudHSVMaxH, 255), S: intOr(c.PointcloudHSVMaxS, 255), V: intOr(c.PointcloudHSVMaxV, 255)},
	}
}

func (c *DriverConfig) GetClockCounterBits() uint {
	if c.ClockCounterBits == nil {
		return clocksync.DefaultCounterBits
	}
	return uint(*c.ClockCounterBits)
}

func (c *DriverConfig) GetDriftTolerance() time.Duration {
	if c.DriftTolerance == nil || *c.DriftTolerance == "" {
		return clocksync.DefaultDriftTolerance
	}
	d, err := time.ParseDuration(*c.DriftTolerance)
	if err != nil || d <= 0 {
		return clocksync.DefaultDriftTolerance
	}
	return d
}

// GetClockReference returns the stream whose samples drive translator
// updates. Motion is the reference unless the IMU is disabled, in which case
// the configured reference (or the first enabled frame stream) is used.
func (c *DriverConfig) GetClockReference() stream.Kind {
	if c.ClockReference != nil && *c.ClockReference != "" {
		if k, err := stream.ParseKind(*c.ClockReference); err == nil && c.Enabled(k) {
			return k
		}
	}
	for _, k := range stream.All {
		if c.Enabled(k) {
			return k
		}
	}
	return stream.Motion
}

// StreamSettings describes the capture mode of one stream.
type StreamSettings struct {
	Kind            stream.Kind `json:"kind"`
	Enabled         bool        `json:"enabled"`
	Width           int         `json:"width,omitempty"`
	Height          int         `json:"height,omitempty"`
	FPS             int         `json:"fps,omitempty"`
	SubsampleFactor uint32      `json:"subsample_factor"`
}

// Enabled reports whether the stream of the given kind is configured on.
func (c *DriverConfig) Enabled(k stream.Kind) bool {
	switch k {
	case stream.Motion:
		return c.GetImuEnabled()
	case stream.Fisheye:
		return c.GetFisheyeEnabled()
	case stream.Color:
		return c.GetColorEnabled()
	case stream.Depth:
		return c.GetDepthEnabled()
	case stream.Infrared1, stream.Infrared2:
		return c.GetInfraredEnabled()
	}
	return false
}

func factorOr(v *int) uint32 {
	if v == nil || *v < 1 {
		return 1
	}
	return uint32(*v)
}

// StreamSettings returns the effective capture mode of a stream. The
// infrared imagers share the depth resolution and rate.
func (c *DriverConfig) StreamSettings(k stream.Kind) StreamSettings {
	s := StreamSettings{Kind: k, Enabled: c.Enabled(k), SubsampleFactor: 1}
	switch k {
	case stream.Fisheye:
		s.Width, s.Height, s.FPS = intOr(c.FisheyeWidth, 640), intOr(c.FisheyeHeight, 480), intOr(c.FisheyeFPS, 30)
		s.SubsampleFactor = factorOr(c.FisheyeSubsampleFactor)
	case stream.Color:
		s.Width, s.Height, s.FPS = intOr(c.ColorWidth, 640), intOr(c.ColorHeight, 480), intOr(c.ColorFPS, 30)
		s.SubsampleFactor = factorOr(c.ColorSubsampleFactor)
	case stream.Depth:
		s.Width, s.Height, s.FPS = intOr(c.DepthWidth, 640), intOr(c.DepthHeight, 480), intOr(c.DepthFPS, 30)
		s.SubsampleFactor = factorOr(c.DepthSubsampleFactor)
	case stream.Infrared1, stream.Infrared2:
		s.Width, s.Height, s.FPS = intOr(c.DepthWidth, 640), intOr(c.DepthHeight, 480), intOr(c.DepthFPS, 30)
		s.SubsampleFactor = factorOr(c.InfraredSubsampleFactor)
	}
	return s
}

// SubsampleFactors returns the per-stream factors for admission.Config.
func (c *DriverConfig) SubsampleFactors() map[stream.Kind]uint32 {
	out := make(map[stream.Kind]uint32, stream.NumKinds)
	for _, k := range stream.All {
		out[k] = c.StreamSettings(k).SubsampleFactor
	}
	return out
}

// AdmissionConfig builds the synchronizer configuration.
func (c *DriverConfig) AdmissionConfig() admission.Config {
	return admission.Config{
		SubsampleFactors:       c.SubsampleFactors(),
		SkipFirstMotionSamples: c.GetSkipFirstMotionSamples(),
	}
}

// TranslatorConfig builds the clock translator configuration.
func (c *DriverConfig) TranslatorConfig() clocksync.Config {
	return clocksync.Config{
		CounterBits:    c.GetClockCounterBits(),
		DriftTolerance: c.GetDriftTolerance(),
	}
}
