package monitor

import (
	"errors"
	"fmt"
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes serves the drift plot as PNG under /debug/clock-plot.
func (s *ClockSeries) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("clock-plot", "Device clock offset error plot (PNG)", s.handlePlot)
}

func (s *ClockSeries) handlePlot(w http.ResponseWriter, r *http.Request) {
	p, err := s.Plot()
	if errors.Is(err, ErrNoSamples) {
		http.Error(w, "No offset samples recorded yet", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to build plot: %v", err), http.StatusInternalServerError)
		return
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to render plot: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = wt.WriteTo(w)
}
