package uptime

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) span of UTC instants.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the interval's length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// ReferenceWindow is the analysis horizon: everything is computed over
// [now-7d, now).
const ReferenceWindow = 7 * 24 * time.Hour

// BusinessWindows materializes the schedule into concrete UTC intervals for
// every local calendar date covering [now-7d, now]. Eight dates are usually
// enumerated (seven back plus today); the iteration is driven by the local
// dates of the interval endpoints so zone offsets at the boundaries are
// handled for free. Windows that collapse to zero or negative length after
// localization are dropped. The result is sorted by start.
func BusinessWindows(sched Schedule, loc *time.Location, now time.Time) []Interval {
	from := now.Add(-ReferenceWindow)

	// Naive calendar cursors: the date components matter, the UTC marker is
	// only a container.
	startLocal := from.In(loc)
	endLocal := now.In(loc)
	date := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(endLocal.Year(), endLocal.Month(), endLocal.Day(), 0, 0, 0, 0, time.UTC)

	var windows []Interval
	for !date.After(last) {
		for _, span := range sched.days[weekdayIndex(date.Weekday())] {
			start := resolveLocal(date.Add(span.open), loc)
			end := resolveLocal(date.Add(span.close), loc)
			if !start.Before(end) {
				continue
			}
			windows = append(windows, Interval{Start: start, End: end})
		}
		date = date.AddDate(0, 0, 1)
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Start.Before(windows[j].Start)
	})
	return windows
}

// ClipWindows intersects every window with [from, to), dropping empty
// results. Order is preserved.
func ClipWindows(windows []Interval, from, to time.Time) []Interval {
	var clipped []Interval
	for _, w := range windows {
		start, end := w.Start, w.End
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if start.Before(end) {
			clipped = append(clipped, Interval{Start: start, End: end})
		}
	}
	return clipped
}

// resolveLocal maps a wall-clock reading (carried in a UTC-marked time so
// its calendar components can be inspected) onto the UTC instant it denotes
// in loc. Readings skipped by a spring-forward gap resolve to the first
// valid instant after the gap; readings repeated by a fall-back overlap
// resolve to the earlier UTC candidate. Go's time.Date alone resolves these
// cases in a zone-dependent way, so the candidates are probed explicitly.
func resolveLocal(wall time.Time, loc *time.Location) time.Time {
	guess := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)

	// A wall reading is valid under a UTC offset exactly when converting the
	// resulting instant back into loc reproduces the reading. Probing the
	// offsets in effect around the guess finds every candidate: zero of them
	// means the reading sits in a gap, two means it is ambiguous.
	var candidates []time.Time
	seen := make(map[int]bool)
	for _, probe := range []time.Time{guess.Add(-24 * time.Hour), guess, guess.Add(24 * time.Hour)} {
		_, off := probe.Zone()
		if seen[off] {
			continue
		}
		seen[off] = true
		cand := wall.Add(-time.Duration(off) * time.Second)
		if sameWall(cand.In(loc), wall) {
			candidates = append(candidates, cand)
		}
	}

	switch len(candidates) {
	case 1:
		return candidates[0]
	case 0:
		return gapFirstValid(guess)
	default:
		earliest := candidates[0]
		for _, c := range candidates[1:] {
			if c.Before(earliest) {
				earliest = c
			}
		}
		return earliest
	}
}

// gapFirstValid returns the transition instant that swallowed a
// non-existent wall reading: the first instant carrying the post-transition
// offset.
func gapFirstValid(guess time.Time) time.Time {
	lo := guess.Add(-24 * time.Hour)
	hi := guess.Add(24 * time.Hour)
	_, offBefore := lo.Zone()
	_, offAfter := hi.Zone()
	if offBefore == offAfter {
		// No bracketing transition; nothing better to offer than Go's pick.
		return guess
	}
	for hi.Sub(lo) > time.Nanosecond {
		mid := lo.Add(hi.Sub(lo) / 2)
		if _, off := mid.Zone(); off == offAfter {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

func sameWall(t, wall time.Time) bool {
	return t.Year() == wall.Year() && t.Month() == wall.Month() && t.Day() == wall.Day() &&
		t.Hour() == wall.Hour() && t.Minute() == wall.Minute() && t.Second() == wall.Second() &&
		t.Nanosecond() == wall.Nanosecond()
}
