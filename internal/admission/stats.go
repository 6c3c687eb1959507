package admission

// Stats counts admission outcomes for one stream.
type Stats struct {
	Accepted     uint64 `json:"accepted"`
	NonMonotonic uint64 `json:"non_monotonic"`
	Subsampled   uint64 `json:"subsampled"`
	Settling     uint64 `json:"settling"`
}

// Dropped returns the total number of drops.
func (s Stats) Dropped() uint64 {
	return s.NonMonotonic + s.Subsampled + s.Settling
}

func (s *Stats) record(d Decision) {
	if d.Outcome == Accept {
		s.Accepted++
		return
	}
	switch d.Reason {
	case NonMonotonic:
		s.NonMonotonic++
	case Subsampled:
		s.Subsampled++
	case Settling:
		s.Settling++
	}
}
