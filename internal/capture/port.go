package capture

import (
	"io"
)

// Porter defines the minimal interface needed for a capture bridge link.
// This abstraction enables unit testing without real hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}
