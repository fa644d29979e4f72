package uptime

import (
	"time"

	"storewatch/internal/storage"
)

// Segment is one piece of the reconstructed status signal: a half-open UTC
// interval carrying a single status tag.
type Segment struct {
	Start  time.Time
	End    time.Time
	Status string
}

// BuildSegments reconstructs the piecewise-constant status signal over
// [from, to) from a poll sequence sorted ascending within those bounds.
// Boundaries are {from, poll timestamps, to}; each segment carries the
// status of the poll at its left edge, and the first poll's status is
// carried back over the unobserved prefix. The returned flag reports the
// no-polls case, where a single active segment is invented and the caller
// must surface a diagnostic.
//
// Zero-length pieces (duplicate timestamps, polls at the bounds) are
// dropped, so the result partitions [from, to) exactly: contiguous,
// non-overlapping, fully covering.
func BuildSegments(polls []storage.Poll, from, to time.Time) ([]Segment, bool) {
	if !from.Before(to) {
		return nil, false
	}

	if len(polls) == 0 {
		return []Segment{{Start: from, End: to, Status: storage.StatusActive}}, true
	}

	segments := make([]Segment, 0, len(polls)+1)
	appendSegment := func(start, end time.Time, status string) {
		if start.Before(end) {
			segments = append(segments, Segment{Start: start, End: end, Status: status})
		}
	}

	appendSegment(from, polls[0].Timestamp, polls[0].Status)

	cursor := polls[0]
	for _, p := range polls[1:] {
		if !p.Timestamp.After(cursor.Timestamp) {
			continue // duplicate timestamp: first poll wins
		}
		appendSegment(cursor.Timestamp, p.Timestamp, cursor.Status)
		cursor = p
	}
	appendSegment(cursor.Timestamp, to, cursor.Status)

	return segments, false
}
