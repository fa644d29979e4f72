package uptime

import (
	"time"

	"storewatch/internal/storage"
)

// Totals holds exact integer-nanosecond accumulations of scheduled time
// spent in each status. Conversion to reporting units happens only at the
// rendering step.
type Totals struct {
	Uptime   time.Duration
	Downtime time.Duration
}

// Busy returns the total scheduled time covered by the signal.
func (t Totals) Busy() time.Duration {
	return t.Uptime + t.Downtime
}

// Accumulate sums the pairwise intersections of segments and windows,
// classifying each by the segment's status. Both inputs are sorted by start,
// which lets a merge pointer skip windows that end before the segment at
// hand; the sums are identical to the full pairwise definition
// max(0, min(ends) - max(starts)) because only zero-overlap pairs are
// skipped.
func Accumulate(segments []Segment, windows []Interval) Totals {
	var totals Totals

	wi := 0
	for _, seg := range segments {
		for wi < len(windows) && !windows[wi].End.After(seg.Start) {
			wi++
		}
		for j := wi; j < len(windows) && windows[j].Start.Before(seg.End); j++ {
			overlap := minTime(seg.End, windows[j].End).Sub(maxTime(seg.Start, windows[j].Start))
			if overlap <= 0 {
				continue
			}
			if seg.Status == storage.StatusActive {
				totals.Uptime += overlap
			} else {
				totals.Downtime += overlap
			}
		}
	}

	return totals
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
