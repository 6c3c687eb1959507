package dispatch

import (
	"sync"

	"github.com/banshee-data/depthsync/internal/clocksync"
)

type accelReading struct {
	stamp clocksync.HostTimestamp
	axes  [3]float64
}

// imuCombiner merges the accelerometer and gyroscope into one inertial
// sample per gyro reading. The two sensors run at different rates and
// often stamp the same device tick, so only gyro readings are admitted and
// each carries the accelerometer value interpolated at its stamp.
type imuCombiner struct {
	mu   sync.Mutex
	prev *accelReading
	last *accelReading
}

// observeAccel records an accelerometer reading. Readings older than the
// latest one are ignored.
func (c *imuCombiner) observeAccel(stamp clocksync.HostTimestamp, axes [3]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && stamp < c.last.stamp {
		return
	}
	if c.last != nil && stamp == c.last.stamp {
		c.last.axes = axes
		return
	}
	c.prev = c.last
	c.last = &accelReading{stamp: stamp, axes: axes}
}

// accelAt returns the accelerometer value at stamp: linear between the two
// latest readings when stamp falls between them, otherwise the nearer one.
// ok is false until the first accelerometer reading.
func (c *imuCombiner) accelAt(stamp clocksync.HostTimestamp) (axes [3]float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.last == nil:
		return axes, false
	case stamp >= c.last.stamp || c.prev == nil:
		return c.last.axes, true
	case stamp <= c.prev.stamp:
		return c.prev.axes, true
	}
	w := float64(stamp-c.prev.stamp) / float64(c.last.stamp-c.prev.stamp)
	for i := range axes {
		axes[i] = c.prev.axes[i] + w*(c.last.axes[i]-c.prev.axes[i])
	}
	return axes, true
}
