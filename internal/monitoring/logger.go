// Package monitoring owns the driver's log streams.
//
// Three streams are kept apart so operators can route them independently:
// ops carries actionable warnings and lifecycle, diag carries day-to-day
// diagnostics such as resynchronisation details, and trace carries
// per-sample chatter and is normally off. A nil writer disables a stream.
package monitoring

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

const logPrefix = "[depthsync] "

type logStream struct {
	l atomic.Pointer[log.Logger]
}

func (s *logStream) set(w io.Writer) {
	if w == nil {
		s.l.Store(nil)
		return
	}
	s.l.Store(log.New(w, logPrefix, log.LstdFlags|log.Lmicroseconds))
}

func (s *logStream) printf(format string, args ...interface{}) {
	if l := s.l.Load(); l != nil {
		l.Printf(format, args...)
	}
}

var ops, diag, trace logStream

func init() {
	ops.set(os.Stderr)
	diag.set(os.Stderr)
}

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	ops.set(w.Ops)
	diag.set(w.Diag)
	trace.set(w.Trace)
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) { ops.printf(format, args...) }

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) { diag.printf(format, args...) }

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) { trace.printf(format, args...) }

// TraceEnabled reports whether the trace stream has a writer, so hot paths
// can skip formatting.
func TraceEnabled() bool { return trace.l.Load() != nil }
