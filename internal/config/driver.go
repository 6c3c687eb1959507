// Package config loads and validates the driver configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/stream"
)

// DefaultConfigPath is the path to the canonical driver defaults file.
const DefaultConfigPath = "config/driver.defaults.json"

// DriverConfig is the flat JSON configuration of the camera driver. Every
// field is optional; the Get* methods supply defaults for unset fields so
// partial files are safe.
type DriverConfig struct {
	// Imu
	ImuEnabled             *bool `json:"imu_enabled,omitempty"`
	SkipFirstMotionSamples *int  `json:"skip_first_motion_samples,omitempty"`

	// Fisheye
	FisheyeEnabled            *bool    `json:"fisheye_enabled,omitempty"`
	FisheyeEnableAutoExposure *bool    `json:"fisheye_enable_auto_exposure,omitempty"`
	FisheyeExposureMs         *float64 `json:"fisheye_exposure_ms,omitempty"`
	FisheyeGain               *float64 `json:"fisheye_gain,omitempty"`
	FisheyeSubsampleFactor    *int     `json:"fisheye_subsample_factor,omitempty"`
	FisheyeWidth              *int     `json:"fisheye_width,omitempty"`
	FisheyeHeight             *int     `json:"fisheye_height,omitempty"`
	FisheyeFPS                *int     `json:"fisheye_fps,omitempty"`

	// Color
	ColorEnabled         *bool `json:"color_enabled,omitempty"`
	ColorWidth           *int  `json:"color_width,omitempty"`
	ColorHeight          *int  `json:"color_height,omitempty"`
	ColorFPS             *int  `json:"color_fps,omitempty"`
	ColorSubsampleFactor *int  `json:"color_subsample_factor,omitempty"`

	// Depth
	DepthEnabled               *bool    `json:"depth_enabled,omitempty"`
	DepthWidth                 *int     `json:"depth_width,omitempty"`
	DepthHeight                *int     `json:"depth_height,omitempty"`
	DepthFPS                   *int     `json:"depth_fps,omitempty"`
	DepthSubsampleFactor       *int     `json:"depth_subsample_factor,omitempty"`
	DepthMedianFilterEnabled   *bool    `json:"depth_median_filter_enabled,omitempty"`
	DepthMinMaxFilterEnabled   *bool    `json:"depth_min_max_filter_enabled,omitempty"`
	DepthMinMaxFilterSize      *int     `json:"depth_min_max_filter_size,omitempty"`
	DepthMinMaxFilterThreshold *float64 `json:"depth_min_max_filter_threshold,omitempty"`
	DepthControlPreset         *string  `json:"depth_control_preset,omitempty"`

	// Infrared (both imagers run at the depth resolution and rate)
	InfraredEnabled         *bool `json:"infrared_enabled,omitempty"`
	InfraredSubsampleFactor *int  `json:"infrared_subsample_factor,omitempty"`

	// Pointcloud
	PointcloudEnabled            *bool `json:"pointcloud_enabled,omitempty"`
	PointcloudColorFilterEnabled *bool `json:"pointcloud_color_filter_enabled,omitempty"`
	PointcloudHSVMinH            *int  `json:"pointcloud_hsv_min_h,omitempty"`
	PointcloudHSVMinS            *int  `json:"pointcloud_hsv_min_s,omitempty"`
	PointcloudHSVMinV            *int  `json:"pointcloud_hsv_min_v,omitempty"`
	PointcloudHSVMaxH            *int  `json:"pointcloud_hsv_max_h,omitempty"`
	PointcloudHSVMaxS            *int  `json:"pointcloud_hsv_max_s,omitempty"`
	PointcloudHSVMaxV            *int  `json:"pointcloud_hsv_max_v,omitempty"`

	// Clock
	ClockCounterBits *int    `json:"clock_counter_bits,omitempty"`
	DriftTolerance   *string `json:"drift_tolerance,omitempty"` // duration string like "20ms"
	ClockReference   *string `json:"clock_reference,omitempty"` // stream kind feeding the translator
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDriverConfig returns a DriverConfig with all fields set to nil.
func EmptyDriverConfig() *DriverConfig {
	return &DriverConfig{}
}

// DefaultDriverConfig returns a config with every field set explicitly to
// its default, matching DefaultConfigPath.
func DefaultDriverConfig() *DriverConfig {
	return &DriverConfig{
		ImuEnabled:             ptrBool(true),
		SkipFirstMotionSamples: ptrInt(100),

		FisheyeEnabled:            ptrBool(true),
		FisheyeEnableAutoExposure: ptrBool(true),
		FisheyeExposureMs:         ptrFloat64(25),
		FisheyeGain:               ptrFloat64(9),
		FisheyeSubsampleFactor:    ptrInt(1),
		FisheyeWidth:              ptrInt(640),
		FisheyeHeight:             ptrInt(480),
		FisheyeFPS:                ptrInt(30),

		ColorEnabled:         ptrBool(true),
		ColorWidth:           ptrInt(640),
		ColorHeight:          ptrInt(480),
		ColorFPS:             ptrInt(30),
		ColorSubsampleFactor: ptrInt(1),

		DepthEnabled:               ptrBool(true),
		DepthWidth:                 ptrInt(640),
		DepthHeight:                ptrInt(480),
		DepthFPS:                   ptrInt(30),
		DepthSubsampleFactor:       ptrInt(1),
		DepthMedianFilterEnabled:   ptrBool(false),
		DepthMinMaxFilterEnabled:   ptrBool(false),
		DepthMinMaxFilterSize:      ptrInt(3),
		DepthMinMaxFilterThreshold: ptrFloat64(0.3),
		DepthControlPreset:         ptrString(string(DepthPresetHigh)),

		InfraredEnabled:         ptrBool(true),
		InfraredSubsampleFactor: ptrInt(1),

		PointcloudEnabled:            ptrBool(true),
		PointcloudColorFilterEnabled: ptrBool(false),
		PointcloudHSVMinH:            ptrInt(0),
		PointcloudHSVMinS:            ptrInt(0),
		PointcloudHSVMinV:            ptrInt(0),
		PointcloudHSVMaxH:            ptrInt(255),
		PointcloudHSVMaxS:            ptrInt(255),
		PointcloudHSVMaxV:            ptrInt(255),

		ClockCounterBits: ptrInt(32),
		DriftTolerance:   ptrString("20ms"),
		ClockReference:   ptrString("motion"),
	}
}

// LoadDriverConfig loads a DriverConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadDriverConfig(path string) (*DriverConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDriverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *DriverConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // deeper packages
		"../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadDriverConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DriverConfig) Validate() error {
	if c.SkipFirstMotionSamples != nil && *c.SkipFirstMotionSamples < 0 {
		return fmt.Errorf("skip_first_motion_samples must be non-negative, got %d", *c.SkipFirstMotionSamples)
	}

	for name, v := range map[string]*int{
		"fisheye_subsample_factor":  c.FisheyeSubsampleFactor,
		"color_subsample_factor":    c.ColorSubsampleFactor,
		"depth_subsample_factor":    c.DepthSubsampleFactor,
		"infrared_subsample_factor": c.InfraredSubsampleFactor,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}

	for name, v := range map[string]*int{
		"fisheye_width":  c.FisheyeWidth,
		"fisheye_height": c.FisheyeHeight,
		"color_width":    c.ColorWidth,
		"color_height":   c.ColorHeight,
		"depth_width":    c.DepthWidth,
		"depth_height":   c.DepthHeight,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}

	for name, v := range map[string]*int{
		"fisheye_fps": c.FisheyeFPS,
		"color_fps":   c.ColorFPS,
		"depth_fps":   c.DepthFPS,
	} {
		if v != nil && (*v <= 0 || *v > 120) {
			return fmt.Errorf("%s must be between 1 and 120, got %d", name, *v)
		}
	}

	if c.FisheyeExposureMs != nil && (*c.FisheyeExposureMs <= 0 || *c.FisheyeExposureMs > 40) {
		return fmt.Errorf("fisheye_exposure_ms must be in (0, 40], got %f", *c.FisheyeExposureMs)
	}
	if c.FisheyeGain != nil && *c.FisheyeGain < 0 {
		return fmt.Errorf("fisheye_gain must be non-negative, got %f", *c.FisheyeGain)
	}

	if c.DepthMinMaxFilterSize != nil && *c.DepthMinMaxFilterSize < 1 {
		return fmt.Errorf("depth_min_max_filter_size must be at least 1, got %d", *c.DepthMinMaxFilterSize)
	}
	if c.DepthMinMaxFilterThreshold != nil && *c.DepthMinMaxFilterThreshold < 0 {
		return fmt.Errorf("depth_min_max_filter_threshold must be non-negative, got %f", *c.DepthMinMaxFilterThreshold)
	}
	if c.DepthControlPreset != nil {
		if _, err := ParseDepthPreset(*c.DepthControlPreset); err != nil {
			return err
		}
	}

	for name, v := range map[string]*int{
		"pointcloud_hsv_min_h": c.PointcloudHSVMinH,
		"pointcloud_hsv_min_s": c.PointcloudHSVMinS,
		"pointcloud_hsv_min_v": c.PointcloudHSVMinV,
		"pointcloud_hsv_max_h": c.PointcloudHSVMaxH,
		"pointcloud_hsv_max_s": c.PointcloudHSVMaxS,
		"pointcloud_hsv_max_v": c.PointcloudHSVMaxV,
	} {
		if v != nil && (*v < 0 || *v > 255) {
			return fmt.Errorf("%s must be between 0 and 255, got %d", name, *v)
		}
	}
	hsv := c.GetHSVBounds()
	if hsv.Min.H > hsv.Max.H || hsv.Min.S > hsv.Max.S || hsv.Min.V > hsv.Max.V {
		return fmt.Errorf("pointcloud HSV minimum %v exceeds maximum %v", hsv.Min, hsv.Max)
	}

	if c.ClockCounterBits != nil && (*c.ClockCounterBits < clocksync.MinCounterBits || *c.ClockCounterBits > clocksync.MaxCounterBits) {
		return fmt.Errorf("clock_counter_bits must be between %d and %d, got %d",
			clocksync.MinCounterBits, clocksync.MaxCounterBits, *c.ClockCounterBits)
	}
	if c.DriftTolerance != nil && *c.DriftTolerance != "" {
		d, err := time.ParseDuration(*c.DriftTolerance)
		if err != nil {
			return fmt.Errorf("invalid drift_tolerance '%s': %w", *c.DriftTolerance, err)
		}
		if d <= 0 {
			return fmt.Errorf("drift_tolerance must be positive, got %s", *c.DriftTolerance)
		}
	}
	if c.ClockReference != nil && *c.ClockReference != "" {
		if _, err := stream.ParseKind(*c.ClockReference); err != nil {
			return fmt.Errorf("invalid clock_reference: %w", err)
		}
	}

	return nil
}
