package capture

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// pipePort is a Porter whose reads come from an io.Pipe and whose writes
// are captured.
type pipePort struct {
	r *io.PipeReader
	W *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
	// WriteError is returned by every Write when set.
	WriteError error
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, W: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.WriteError != nil {
		return 0, p.WriteError
	}
	return p.written.Write(b)
}

func (p *pipePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.r.Close()
}

func (p *pipePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// recorder is a Handler that keeps every event.
type recorder struct {
	mu     sync.Mutex
	motion []MotionEvent
	frames []FrameEvent
}

func (r *recorder) OnMotionEvent(m MotionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.motion = append(r.motion, m)
}

func (r *recorder) OnFrameEvent(f FrameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.motion), len(r.frames)
}
