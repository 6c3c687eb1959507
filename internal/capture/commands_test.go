package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthsync/internal/config"
)

func optionValues(cmds []Command) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range cmds {
		if c.Cmd == "set_option" {
			out[c.Option] = c.Value
		}
	}
	return out
}

func enabledStreams(cmds []Command) []string {
	var out []string
	for _, c := range cmds {
		if c.Cmd == "enable_stream" {
			out = append(out, c.Stream)
		}
	}
	return out
}

func TestCommandsDefault(t *testing.T) {
	cmds, err := Commands(config.DefaultDriverConfig())
	require.NoError(t, err)

	assert.Equal(t, "reset", cmds[0].Cmd)
	assert.Equal(t, "start", cmds[len(cmds)-1].Cmd)
	assert.Equal(t, "enable_motion", cmds[1].Cmd)
	assert.Equal(t, []string{"fisheye", "color", "infrared1", "depth", "infrared2"}, enabledStreams(cmds))

	opts := optionValues(cmds)
	high := config.DepthControlPresets[config.DepthPresetHigh]
	for i, name := range config.DepthControlOptions {
		assert.Equal(t, high[i], opts[name], name)
	}
	assert.Equal(t, 1.0, opts["fisheye_color_auto_exposure"])
	assert.Equal(t, 9.0, opts["fisheye_gain"])
	_, manual := opts["fisheye_exposure"]
	assert.False(t, manual, "exposure is not set while auto exposure is on")
}

func TestCommandsDisabledStreams(t *testing.T) {
	cfg := config.EmptyDriverConfig()
	off := false
	cfg.DepthEnabled = &off
	cfg.InfraredEnabled = &off
	cfg.ImuEnabled = &off
	cfg.FisheyeEnableAutoExposure = &off

	cmds, err := Commands(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"fisheye", "color"}, enabledStreams(cmds))
	opts := optionValues(cmds)
	assert.NotContains(t, opts, config.DepthControlOptions[0])
	assert.Equal(t, 25.0, opts["fisheye_exposure"])
	for _, c := range cmds {
		assert.NotEqual(t, "enable_motion", c.Cmd)
	}
}
