package capture

import (
	"encoding/json"

	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/stream"
)

// Command is one configuration instruction for the capture bridge.
type Command struct {
	Cmd    string  `json:"cmd"`
	Stream string  `json:"stream,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	FPS    int     `json:"fps,omitempty"`
	Option string  `json:"option,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

func (c Command) line() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Commands returns the bridge instructions that bring the device into the
// configured state, ending with "start". Infrared2 shares the infrared
// enable flag, so a single enable_stream covers both imagers.
func Commands(cfg *config.DriverConfig) ([]Command, error) {
	cmds := []Command{{Cmd: "reset"}}

	if cfg.GetImuEnabled() {
		cmds = append(cmds, Command{Cmd: "enable_motion"})
	}
	for _, k := range []stream.Kind{stream.Fisheye, stream.Color, stream.Infrared1, stream.Depth} {
		s := cfg.StreamSettings(k)
		if !s.Enabled {
			continue
		}
		cmds = append(cmds, Command{Cmd: "enable_stream", Stream: k.String(), Width: s.Width, Height: s.Height, FPS: s.FPS})
	}
	if cfg.GetInfraredEnabled() {
		s := cfg.StreamSettings(stream.Infrared2)
		cmds = append(cmds, Command{Cmd: "enable_stream", Stream: stream.Infrared2.String(), Width: s.Width, Height: s.Height, FPS: s.FPS})
	}

	if cfg.GetFisheyeEnabled() {
		cmds = append(cmds,
			Command{Cmd: "set_option", Option: "fisheye_color_auto_exposure", Value: boolValue(cfg.GetFisheyeEnableAutoExposure())},
			Command{Cmd: "set_option", Option: "fisheye_gain", Value: cfg.GetFisheyeGain()},
		)
		if !cfg.GetFisheyeEnableAutoExposure() {
			cmds = append(cmds, Command{Cmd: "set_option", Option: "fisheye_exposure", Value: cfg.GetFisheyeExposureMs()})
		}
	}

	if cfg.GetDepthEnabled() {
		settings, err := cfg.GetDepthControlPreset().DepthControlSettings()
		if err != nil {
			return nil, err
		}
		for _, s := range settings {
			cmds = append(cmds, Command{Cmd: "set_option", Option: s.Option, Value: s.Value})
		}
	}

	return append(cmds, Command{Cmd: "start"}), nil
}
