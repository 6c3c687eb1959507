package config

import (
	"fmt"
	"sort"
	"strings"
)

// DepthPreset names one of the fixed hardware depth-control parameter
// vectors.
type DepthPreset string

const (
	// DepthPresetDefault is the on-chip default; similar to medium and
	// best for outdoors.
	DepthPresetDefault DepthPreset = "default"
	// DepthPresetOff disables almost all hardware outlier removal.
	DepthPresetOff DepthPreset = "off"
	// DepthPresetLow removes few outliers, minimal false negatives.
	DepthPresetLow DepthPreset = "low"
	// DepthPresetMedium is the balanced setting.
	DepthPresetMedium DepthPreset = "medium"
	// DepthPresetOptimized removes a medium/high number of outliers,
	// derived from an optimisation function.
	DepthPresetOptimized DepthPreset = "optimized"
	// DepthPresetHigh removes many outliers, minimal false positives.
	DepthPresetHigh DepthPreset = "high"
)

// DepthControlOptions are the device options the preset vectors set, in
// vector order.
var DepthControlOptions = [10]string{
	"r200_depth_control_estimate_median_decrement",
	"r200_depth_control_estimate_median_increment",
	"r200_depth_control_median_threshold",
	"r200_depth_control_score_minimum_threshold",
	"r200_depth_control_score_maximum_threshold",
	"r200_depth_control_texture_count_threshold",
	"r200_depth_control_texture_difference_threshold",
	"r200_depth_control_second_peak_threshold",
	"r200_depth_control_neighbor_threshold",
	"r200_depth_control_lr_threshold",
}

// DepthControlPresets maps each preset to its parameter vector.
var DepthControlPresets = map[DepthPreset][10]float64{
	DepthPresetDefault:   {5, 5, 192, 1, 512, 6, 24, 27, 7, 24},
	DepthPresetOff:       {5, 5, 0, 0, 1023, 0, 0, 0, 0, 2047},
	DepthPresetLow:       {5, 5, 115, 1, 512, 6, 18, 25, 3, 24},
	DepthPresetMedium:    {5, 5, 185, 5, 505, 6, 35, 45, 45, 14},
	DepthPresetOptimized: {5, 5, 175, 24, 430, 6, 48, 47, 24, 12},
	DepthPresetHigh:      {5, 5, 235, 27, 420, 8, 80, 70, 90, 12},
}

// ParseDepthPreset accepts a preset name case-insensitively.
func ParseDepthPreset(s string) (DepthPreset, error) {
	p := DepthPreset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := DepthControlPresets[p]; !ok {
		return "", fmt.Errorf("unknown depth control preset %q: expected one of %s", s, strings.Join(DepthPresetNames(), ", "))
	}
	return p, nil
}

// DepthPresetNames returns the preset names sorted alphabetically.
func DepthPresetNames() []string {
	names := make([]string, 0, len(DepthControlPresets))
	for p := range DepthControlPresets {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// DepthControlSetting is one option/value pair to apply to the device.
type DepthControlSetting struct {
	Option string  `json:"option"`
	Value  float64 `json:"value"`
}

// DepthControlSettings pairs the preset's vector with the option names.
func (p DepthPreset) DepthControlSettings() ([]DepthControlSetting, error) {
	values, ok := DepthControlPresets[p]
	if !ok {
		return nil, fmt.Errorf("unknown depth control preset %q", string(p))
	}
	out := make([]DepthControlSetting, len(values))
	for i, v := range values {
		out[i] = DepthControlSetting{Option: DepthControlOptions[i], Value: v}
	}
	return out, nil
}
