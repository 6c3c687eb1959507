package dispatch

import (
	"sync"

	"github.com/banshee-data/depthsync/internal/clocksync"
)

// DepthFrame is a cached accepted depth map.
type DepthFrame struct {
	Image
	Stamp clocksync.HostTimestamp `json:"stamp_ns"`
}

// DepthFrameCache holds the most recently accepted depth frame. Only the
// dispatcher writes it; readers get a copy of the header and share the
// read-only pixel buffer.
type DepthFrameCache struct {
	mu    sync.RWMutex
	frame DepthFrame
	ok    bool
}

func (c *DepthFrameCache) store(f DepthFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = f
	c.ok = true
}

// Latest returns the cached frame, or false before the first accepted
// depth frame.
func (c *DepthFrameCache) Latest() (DepthFrame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.ok
}
