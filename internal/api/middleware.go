package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/depthsync/internal/monitoring"
)

// ANSI escape codes for request log colouring
const (
	ansiReset     = "\033[0m"
	ansiCyan      = "\033[36m"
	ansiYellow    = "\033[33m"
	ansiBoldGreen = "\033[1;32m"
	ansiBoldRed   = "\033[1;31m"
)

// statusRecorder remembers the status written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps the bus tail stream working through the middleware.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusCodeColor(code int) string {
	var c string
	switch code / 100 {
	case 2:
		c = ansiBoldGreen
	case 3:
		c = ansiYellow
	case 4, 5:
		c = ansiBoldRed
	default:
		return fmt.Sprint(code)
	}
	return fmt.Sprintf("%s%d%s", c, code, ansiReset)
}

// LoggingMiddleware writes one diag line per request with the status,
// method, URI and latency in milliseconds.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ms := float64(time.Since(began).Microseconds()) / 1000
		monitoring.Diagf("[%s] %s %s%s%s %.3fms",
			statusCodeColor(rec.status), r.Method, ansiCyan, r.RequestURI, ansiReset, ms)
	})
}
