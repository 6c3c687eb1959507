package monitor

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthsync/internal/clocksync"
)

func populated() *ClockSeries {
	s := NewClockSeries(0)
	for i := int64(1); i <= 50; i++ {
		s.Sample(clocksync.Status{
			Calibrated:           true,
			LastUpdateHostNanos:  i * 5_000_000,
			LastOffsetErrorNanos: (i % 7) * 100_000,
		})
	}
	s.OnClockEvent(clocksync.Event{Kind: clocksync.EventCalibrated, HostNanos: 5_000_000})
	s.OnClockEvent(clocksync.Event{Kind: clocksync.EventWrapped, HostNanos: 100_000_000, OffsetErrorNanos: 300_000})
	return s
}

func TestPlotEmpty(t *testing.T) {
	_, err := NewClockSeries(0).Plot()
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestSavePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", PlotPath("", "sim", time.Date(2026, 1, 7, 17, 31, 29, 0, time.UTC)))
	require.NoError(t, populated().SavePlot(path))

	assert.True(t, strings.HasSuffix(path, "clock_sim_20260107_173129.png"))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.DecodeConfig(f)
	assert.NoError(t, err)
}

func TestPlotPathDefaultsToLive(t *testing.T) {
	got := PlotPath("plots", "", time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("plots", "clock_live_20260107_000000.png"), got)
}

func TestClockPlotRoute(t *testing.T) {
	empty := http.NewServeMux()
	NewClockSeries(0).AttachAdminRoutes(empty)
	srv := httptest.NewServer(empty)
	resp, err := http.Get(srv.URL + "/debug/clock-plot")
	require.NoError(t, err)
	resp.Body.Close()
	srv.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	mux := http.NewServeMux()
	populated().AttachAdminRoutes(mux)
	srv = httptest.NewServer(mux)
	defer srv.Close()
	resp, err = http.Get(srv.URL + "/debug/clock-plot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_, err = png.DecodeConfig(resp.Body)
	assert.NoError(t, err)
}

func TestRenderDashboard(t *testing.T) {
	stats := NewIntervalStats(0)
	for i := int64(0); i < 5; i++ {
		stats.Observe("depth", i*16_666_667)
	}
	var buf bytes.Buffer
	require.NoError(t, RenderDashboard(&buf, stats.Summaries(), populated().Samples()))

	html := buf.String()
	assert.Contains(t, html, "Sample intervals")
	assert.Contains(t, html, "Clock offset error")
	assert.Contains(t, html, "depth")
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	cs := generateColors(4)
	require.Len(t, cs, 4)
	assert.NotEqual(t, cs[0], cs[1])
}

func TestPlotPathSanitizesSource(t *testing.T) {
	got := PlotPath("plots", "../serial:/dev/tty", time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("plots", "clock_serial_dev_tty_20260107_000000.png"), got)
}
