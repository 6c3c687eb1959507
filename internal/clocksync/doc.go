// Package clocksync translates device hardware clock ticks into host
// timestamps.
//
// A depth camera stamps every sample with a free-running counter that
// wraps, drifts against the host, and may tick in milliseconds or
// microseconds depending on the stream. Translator keeps an affine model
//
//	host = hostOrigin + (deviceNanos - deviceOrigin)
//
// anchored on the first observed (device, host) pair. Update feeds new
// pairs: counter wraps are unwrapped against the previous reading, a gap
// longer than a full counter period forces a fresh anchor, and an offset
// error outside the drift tolerance re-anchors to the latest sample.
// Translate is a pure read of the model.
//
// Timestamps are monotonic within a stream between re-anchors but may step
// at a resynchronisation; the admission layer drops any sample that would
// run backwards.
package clocksync
