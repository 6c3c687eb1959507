package admission

// Outcome is the admission verdict for one sample.
type Outcome int

const (
	Accept Outcome = iota
	Drop
)

func (o Outcome) String() string {
	if o == Accept {
		return "accept"
	}
	return "drop"
}

// Reason explains a Drop. Drops are expected traffic shaping, not errors.
type Reason int

const (
	ReasonNone Reason = iota
	// NonMonotonic: the timestamp is not after the last accepted one.
	NonMonotonic
	// Subsampled: the sample fell between accepted subsample phases.
	Subsampled
	// Settling: the sample belongs to the initial inertial burst.
	Settling
	// UnknownStream: the stream kind is out of range.
	UnknownStream
)

func (r Reason) String() string {
	switch r {
	case NonMonotonic:
		return "non_monotonic"
	case Subsampled:
		return "subsampled"
	case Settling:
		return "settling"
	case UnknownStream:
		return "unknown_stream"
	}
	return "none"
}

// Decision is the result of Admit.
type Decision struct {
	Outcome Outcome
	Reason  Reason
}

// Accepted reports whether the sample should be published.
func (d Decision) Accepted() bool {
	return d.Outcome == Accept
}

func (d Decision) String() string {
	if d.Outcome == Accept {
		return "accept"
	}
	return "drop(" + d.Reason.String() + ")"
}

var accepted = Decision{Outcome: Accept}

func dropped(r Reason) Decision {
	return Decision{Outcome: Drop, Reason: r}
}
