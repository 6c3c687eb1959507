package capture

import (
	"fmt"

	"go.bug.st/serial"
)

// NewSerialSource opens the capture bridge at path and returns a LineSource
// reading from it.
func NewSerialSource(path string, opts PortOptions) (*LineSource[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture bridge %s: %w", path, err)
	}

	return NewLineSource[serial.Port](port), nil
}
