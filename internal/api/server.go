// Package api serves a read-mostly JSON view of the running driver.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/depthsync/internal/admission"
	"github.com/banshee-data/depthsync/internal/bus"
	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/db"
	"github.com/banshee-data/depthsync/internal/dispatch"
	"github.com/banshee-data/depthsync/internal/httputil"
	"github.com/banshee-data/depthsync/internal/monitor"
	"github.com/banshee-data/depthsync/internal/stream"
	"github.com/banshee-data/depthsync/internal/units"
	"github.com/banshee-data/depthsync/internal/version"
)

// Server exposes driver state over HTTP. DB, Intervals and Clock may be
// nil; their endpoints then answer 503.
type Server struct {
	Dispatcher   *dispatch.Dispatcher
	Synchronizer *admission.Synchronizer
	Translator   *clocksync.Translator
	Config       *config.DriverConfig
	Bus          *bus.Bus
	DB           *db.DB
	Session      *db.Session
	Intervals    *monitor.IntervalStats
	Clock        *monitor.ClockSeries
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/streams", s.listStreams)
	mux.HandleFunc("/api/streams/{kind}/subsample", s.setSubsample)
	mux.HandleFunc("/api/clock", s.showClock)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/depth/latest", s.showLatestDepth)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}", s.showSession)
	mux.HandleFunc("/api/intervals", s.listIntervals)
	mux.HandleFunc("/api/intervals.html", s.intervalsChart)
	return mux
}

type streamsResponse struct {
	dispatch.Stats
	Bus bus.Stats `json:"bus"`
}

func (s *Server) listStreams(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp := streamsResponse{Stats: s.Dispatcher.Stats()}
	if s.Bus != nil {
		resp.Bus = s.Bus.Stats()
	}
	httputil.WriteJSONOK(w, resp)
}

type subsampleRequest struct {
	Factor uint32 `json:"factor"`
}

func (s *Server) setSubsample(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	kind, err := stream.ParseKind(r.PathValue("kind"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var req subsampleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := s.Synchronizer.SetSubsampleFactor(kind, req.Factor); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.Synchronizer.State(kind))
}

type clockResponse struct {
	clocksync.Status
	WrapPeriodMsTicksS float64           `json:"wrap_period_ms_ticks_s"`
	WrapPeriodUsTicksS float64           `json:"wrap_period_us_ticks_s"`
	Events             []clocksync.Event `json:"recent_events,omitempty"`
}

func (s *Server) showClock(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp := clockResponse{
		Status:             s.Translator.Status(),
		WrapPeriodMsTicksS: s.Translator.PeriodDuration(units.Milliseconds).Seconds(),
		WrapPeriodUsTicksS: s.Translator.PeriodDuration(units.Microseconds).Seconds(),
	}
	if s.Clock != nil {
		resp.Events = s.Clock.Events()
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.Config)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}

type depthResponse struct {
	dispatch.DepthFrame
	StampS float64 `json:"stamp_s"`
	Bytes  int     `json:"bytes"`
}

func (s *Server) showLatestDepth(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	f, ok := s.Dispatcher.DepthCache().Latest()
	if !ok {
		httputil.NotFound(w, "no depth frame accepted yet")
		return
	}
	httputil.WriteJSONOK(w, depthResponse{DepthFrame: f, StampS: f.Stamp.Seconds(), Bytes: len(f.Pixels)})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.DB == nil {
		httputil.ServiceUnavailable(w, "session recording is disabled")
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}
	sessions, err := s.DB.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	current := ""
	if s.Session != nil {
		current = s.Session.ID
	}
	httputil.WriteJSONOK(w, map[string]any{"current": current, "sessions": sessions})
}

type sessionResponse struct {
	*db.Session
	ClockEvents []db.ClockEventRow  `json:"clock_events"`
	StreamStats []db.StreamSnapshot `json:"stream_stats"`
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.DB == nil {
		httputil.ServiceUnavailable(w, "session recording is disabled")
		return
	}
	id := r.PathValue("id")
	sess, err := s.DB.GetSession(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, fmt.Sprintf("session %q not found", id))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load session: %v", err))
		return
	}
	events, err := s.DB.ClockEvents(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load clock events: %v", err))
		return
	}
	stats, err := s.DB.LatestStreamStats(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load stream stats: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessionResponse{Session: sess, ClockEvents: events, StreamStats: stats})
}

func (s *Server) listIntervals(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.Intervals == nil {
		httputil.ServiceUnavailable(w, "interval statistics are disabled")
		return
	}
	httputil.WriteJSONOK(w, s.Intervals.Summaries())
}

func (s *Server) intervalsChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.Intervals == nil {
		httputil.ServiceUnavailable(w, "interval statistics are disabled")
		return
	}
	var samples []monitor.OffsetSample
	if s.Clock != nil {
		samples = s.Clock.Samples()
	}

	var buf bytes.Buffer
	if err := monitor.RenderDashboard(&buf, s.Intervals.Summaries(), samples); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
