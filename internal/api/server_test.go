package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthsync/internal/admission"
	"github.com/banshee-data/depthsync/internal/bus"
	"github.com/banshee-data/depthsync/internal/capture"
	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/db"
	"github.com/banshee-data/depthsync/internal/dispatch"
	"github.com/banshee-data/depthsync/internal/monitor"
	"github.com/banshee-data/depthsync/internal/monitoring"
	"github.com/banshee-data/depthsync/internal/stream"
	"github.com/banshee-data/depthsync/internal/timeutil"
	"github.com/banshee-data/depthsync/internal/units"
)

type testDriver struct {
	srv   *Server
	mux   *http.ServeMux
	clock *timeutil.MockClock
	ticks uint64
}

func newTestDriver(t *testing.T) *testDriver {
	t.Helper()
	cfg := config.EmptyDriverConfig()
	skip := 0
	cfg.SkipFirstMotionSamples = &skip
	require.NoError(t, cfg.Validate())

	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tr, err := clocksync.NewTranslator(timeutil.NewMonotonic(clock), cfg.TranslatorConfig())
	require.NoError(t, err)
	admit := admission.NewSynchronizer(cfg.AdmissionConfig())
	b := bus.New(1024)
	t.Cleanup(func() { b.Close() })

	srv := &Server{
		Dispatcher:   dispatch.New(tr, admit, b, dispatch.ConfigFromDriver(cfg)),
		Synchronizer: admit,
		Translator:   tr,
		Config:       cfg,
		Bus:          b,
	}
	return &testDriver{srv: srv, mux: srv.ServeMux(), clock: clock, ticks: 5000}
}

func (d *testDriver) step(dt time.Duration, depthFrame uint64) {
	d.clock.Advance(dt)
	d.ticks += uint64(dt / time.Millisecond)
	for _, sensor := range []capture.Sensor{capture.Accel, capture.Gyro} {
		d.srv.Dispatcher.OnMotionEvent(capture.MotionEvent{RawTicks: d.ticks, Scale: units.Milliseconds, Sensor: sensor})
	}
	if depthFrame > 0 {
		d.srv.Dispatcher.OnFrameEvent(capture.FrameEvent{
			RawTicks: d.ticks, Scale: units.Milliseconds, StreamID: "depth", FrameNumber: depthFrame,
			Width: 2, Height: 1, BytesPerPixel: 2, Pixels: make([]byte, 4),
		})
	}
}

func (d *testDriver) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	d.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

type streamsView struct {
	Streams map[string]struct {
		Accepted uint64 `json:"accepted"`
		State    struct {
			FrameCounter uint64 `json:"frame_counter"`
		} `json:"state"`
	} `json:"streams"`
	Bus bus.Stats `json:"bus"`
}

func TestListStreams(t *testing.T) {
	d := newTestDriver(t)
	d.step(5*time.Millisecond, 0)
	d.step(5*time.Millisecond, 1)

	rec := d.do(t, http.MethodGet, "/api/streams", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[streamsView](t, rec)
	assert.Equal(t, uint64(2), resp.Streams["motion"].Accepted)
	assert.Equal(t, uint64(1), resp.Streams["depth"].Accepted)
	assert.Equal(t, uint64(1), resp.Streams["depth"].State.FrameCounter)
	assert.Equal(t, uint64(3), resp.Bus.Published)

	rec = d.do(t, http.MethodPost, "/api/streams", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSetSubsample(t *testing.T) {
	d := newTestDriver(t)

	rec := d.do(t, http.MethodPost, "/api/streams/color/subsample", `{"factor":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[admission.State](t, rec)
	assert.Equal(t, uint32(3), state.SubsampleFactor)
	assert.Equal(t, uint32(3), d.srv.Synchronizer.State(stream.Color).SubsampleFactor)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown stream", http.MethodPost, "/api/streams/thermal/subsample", `{"factor":2}`, http.StatusBadRequest},
		{"zero factor", http.MethodPost, "/api/streams/depth/subsample", `{"factor":0}`, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/streams/depth/subsample", `{`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/streams/depth/subsample", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := d.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestShowClock(t *testing.T) {
	d := newTestDriver(t)
	d.srv.Clock = monitor.NewClockSeries(0)

	rec := d.do(t, http.MethodGet, "/api/clock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	before := decode[clockResponse](t, rec)
	assert.False(t, before.Calibrated)

	d.srv.Clock.OnClockEvent(clocksync.Event{Kind: clocksync.EventCalibrated})
	d.step(time.Millisecond, 0)

	rec = d.do(t, http.MethodGet, "/api/clock", "")
	after := decode[clockResponse](t, rec)
	assert.True(t, after.Calibrated)
	assert.Equal(t, uint(32), after.CounterBits)
	assert.InDelta(t, float64(uint64(1)<<32)/1e3, after.WrapPeriodMsTicksS, 1e-6)
	assert.InDelta(t, float64(uint64(1)<<32)/1e6, after.WrapPeriodUsTicksS, 1e-6)
	require.Len(t, after.Events, 1)
}

func TestShowConfigAndVersion(t *testing.T) {
	d := newTestDriver(t)

	rec := d.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg config.DriverConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	require.NotNil(t, cfg.SkipFirstMotionSamples)
	assert.Equal(t, 0, *cfg.SkipFirstMotionSamples)

	rec = d.do(t, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestLatestDepth(t *testing.T) {
	d := newTestDriver(t)

	rec := d.do(t, http.MethodGet, "/api/depth/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	d.step(5*time.Millisecond, 7)
	rec = d.do(t, http.MethodGet, "/api/depth/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FrameNumber uint64  `json:"frame_number"`
		Width       int     `json:"width"`
		StampNs     int64   `json:"stamp_ns"`
		StampS      float64 `json:"stamp_s"`
		Bytes       int     `json:"bytes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, uint64(7), resp.FrameNumber)
	assert.Equal(t, 2, resp.Width)
	assert.Equal(t, 4, resp.Bytes)
	assert.Equal(t, int64(5*time.Millisecond), resp.StampNs)
	assert.InDelta(t, 0.005, resp.StampS, 1e-12)
}

func TestSessions(t *testing.T) {
	d := newTestDriver(t)

	rec := d.do(t, http.MethodGet, "/api/sessions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store, err := db.NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	sess, err := store.StartSession(d.clock.Now(), "sim", "test", d.srv.Config)
	require.NoError(t, err)
	require.NoError(t, store.RecordClockEvent(sess.ID, clocksync.Event{Kind: clocksync.EventCalibrated}))
	d.srv.DB = store
	d.srv.Session = sess

	rec = d.do(t, http.MethodGet, "/api/sessions?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Current  string       `json:"current"`
		Sessions []db.Session `json:"sessions"`
	}](t, rec)
	assert.Equal(t, sess.ID, list.Current)
	require.Len(t, list.Sessions, 1)

	rec = d.do(t, http.MethodGet, "/api/sessions?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = d.do(t, http.MethodGet, "/api/sessions/"+sess.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		ID          string             `json:"session_id"`
		ClockEvents []db.ClockEventRow `json:"clock_events"`
	}](t, rec)
	assert.Equal(t, sess.ID, detail.ID)
	assert.Len(t, detail.ClockEvents, 1)

	rec = d.do(t, http.MethodGet, "/api/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntervals(t *testing.T) {
	d := newTestDriver(t)

	for _, target := range []string{"/api/intervals", "/api/intervals.html"} {
		rec := d.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}

	d.srv.Intervals = monitor.NewIntervalStats(0)
	for i := int64(0); i < 4; i++ {
		d.srv.Intervals.Observe("depth", i*33_000_000)
	}

	rec := d.do(t, http.MethodGet, "/api/intervals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sums := decode[[]monitor.IntervalSummary](t, rec)
	require.Len(t, sums, 1)
	assert.InDelta(t, 33.0, sums[0].MeanMs, 1e-9)

	rec = d.do(t, http.MethodGet, "/api/intervals.html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Sample intervals")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	monitoring.SetLogWriters(monitoring.LogWriters{Ops: os.Stderr, Diag: &buf})
	t.Cleanup(func() { monitoring.SetLogWriters(monitoring.LogWriters{Ops: os.Stderr, Diag: os.Stderr}) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/clock?x=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "/api/clock?x=1")
	assert.Contains(t, buf.String(), "418")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, ansiBoldGreen+"200"+ansiReset, statusCodeColor(200))
	assert.Equal(t, ansiYellow+"304"+ansiReset, statusCodeColor(304))
	assert.Equal(t, ansiBoldRed+"404"+ansiReset, statusCodeColor(404))
	assert.Equal(t, ansiBoldRed+"503"+ansiReset, statusCodeColor(503))
	assert.Equal(t, "101", statusCodeColor(101))
}
