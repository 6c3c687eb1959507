package clocksync

import "errors"

var (
	// ErrUnsynchronized is returned by Translate before the first reference
	// pair has been observed. It clears once Update has run.
	ErrUnsynchronized = errors.New("device clock not synchronised")

	// ErrWraparoundAmbiguous is returned by Update when more host time has
	// passed than one full counter period, so the number of wraps cannot
	// be known. The translator has already re-anchored when this is returned.
	ErrWraparoundAmbiguous = errors.New("device clock wraparound ambiguous")
)
