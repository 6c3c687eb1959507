package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/monitoring"
)

var ErrWriteFailed = errors.New("failed to write to capture bridge")

// maxLineBytes bounds one bridge line; a 640x480 16-bit frame is about
// 820KB once base64 encoded.
const maxLineBytes = 4 * 1024 * 1024

// deliveryBuffer is the per-category queue between the reader and the
// delivery goroutines.
const deliveryBuffer = 64

// SourceStats counts what the reader saw.
type SourceStats struct {
	Lines     uint64 `json:"lines"`
	Motion    uint64 `json:"motion"`
	Frames    uint64 `json:"frames"`
	Status    uint64 `json:"status"`
	Malformed uint64 `json:"malformed"`
}

// LineSource reads JSON lines from a capture bridge link and delivers the
// decoded events to a Handler. Motion and frames are delivered from two
// independent goroutines, as the device SDK does.
type LineSource[T Porter] struct {
	port      T
	commandMu sync.Mutex
	closing   atomic.Bool

	lines, motion, frames, status, malformed atomic.Uint64
}

// NewLineSource wraps an open link.
func NewLineSource[T Porter](port T) *LineSource[T] {
	return &LineSource[T]{port: port}
}

// SendCommand writes one line to the bridge.
func (s *LineSource[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Initialize sends the configuration commands for cfg.
func (s *LineSource[T]) Initialize(cfg *config.DriverConfig) error {
	cmds, err := Commands(cfg)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		line, err := c.line()
		if err != nil {
			return err
		}
		if err := s.SendCommand(line); err != nil {
			return fmt.Errorf("failed to send %s command: %w", c.Cmd, err)
		}
	}
	return nil
}

// Stats returns the reader counters.
func (s *LineSource[T]) Stats() SourceStats {
	return SourceStats{
		Lines:     s.lines.Load(),
		Motion:    s.motion.Load(),
		Frames:    s.frames.Load(),
		Status:    s.status.Load(),
		Malformed: s.malformed.Load(),
	}
}

// Run reads the link until ctx is done, the link reaches EOF, or a read
// fails. No handler call is in flight once Run returns.
func (s *LineSource[T]) Run(ctx context.Context, h Handler) error {
	motionCh := make(chan MotionEvent, deliveryBuffer)
	frameCh := make(chan FrameEvent, deliveryBuffer)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for m := range motionCh {
			h.OnMotionEvent(m)
		}
	}()
	go func() {
		defer wg.Done()
		for f := range frameCh {
			h.OnFrameEvent(f)
		}
	}()
	defer func() {
		close(motionCh)
		close(frameCh)
		wg.Wait()
	}()

	scan := bufio.NewScanner(s.port)
	scan.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs on its own goroutine so the loop below
	// can still observe cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if s.closing.Load() {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			s.lines.Add(1)

			rec, err := DecodeLine(line)
			if err != nil {
				s.malformed.Add(1)
				if monitoring.TraceEnabled() {
					monitoring.Tracef("capture: dropping line: %v", err)
				}
				continue
			}
			switch rec.Type {
			case RecordMotion:
				s.motion.Add(1)
				select {
				case motionCh <- *rec.Motion:
				case <-ctx.Done():
					return ctx.Err()
				}
			case RecordFrame:
				s.frames.Add(1)
				select {
				case frameCh <- *rec.Frame:
				case <-ctx.Done():
					return ctx.Err()
				}
			case RecordStatus:
				s.status.Add(1)
				monitoring.Diagf("capture bridge: %s", rec.Status)
			}
		}
	}
}

// Close stops delivery and closes the link.
func (s *LineSource[T]) Close() error {
	s.closing.Store(true)
	return s.port.Close()
}
