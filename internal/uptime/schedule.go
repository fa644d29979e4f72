package uptime

import (
	"fmt"
	"strings"
	"time"

	"storewatch/internal/storage"
)

// dayLength is one nominal local day. Closing times are expressed as offsets
// from local midnight, so an end-of-day close becomes exactly dayLength.
const dayLength = 24 * time.Hour

// endOfDayClose is the sentinel closing time used by the feeds (and by the
// default schedule) to mean "open until midnight". It is promoted to a full
// dayLength offset so a 24x7 store accrues exactly 24 hours per day.
const endOfDayClose = 23*time.Hour + 59*time.Minute + 59*time.Second

// clockSpan is a single open interval within one local day, as offsets from
// local midnight. open < close always holds for stored spans.
type clockSpan struct {
	open  time.Duration
	close time.Duration
}

// Schedule holds the weekly business-hours grid. Weekdays are indexed
// 0=Monday through 6=Sunday. A day with no spans is closed.
type Schedule struct {
	days [7][]clockSpan
}

// Default24x7 returns the schedule assumed for stores with no business_hours
// rows: open around the clock, every day.
func Default24x7() Schedule {
	var s Schedule
	for d := range s.days {
		s.days[d] = []clockSpan{{open: 0, close: dayLength}}
	}
	return s
}

// ParseSchedule converts raw schedule rows into a Schedule. Rows that cannot
// be used are skipped and reported as warnings: a malformed time-of-day
// yields a parse_error warning, an out-of-range weekday likewise. Spans whose
// open does not precede their close are dropped silently, matching how the
// data has always been interpreted.
func ParseSchedule(entries []storage.ScheduleEntry) (Schedule, []string) {
	var s Schedule
	var warnings []string

	for _, e := range entries {
		if e.Day < 0 || e.Day > 6 {
			warnings = append(warnings, fmt.Sprintf("parse_error:day_of_week %d out of range", e.Day))
			continue
		}
		open, err := parseTimeOfDay(e.Open)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("parse_error:start_time_local %q", e.Open))
			continue
		}
		clos, err := parseTimeOfDay(e.Close)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("parse_error:end_time_local %q", e.Close))
			continue
		}
		if clos == endOfDayClose {
			clos = dayLength
		}
		if open >= clos {
			continue
		}
		s.days[e.Day] = append(s.days[e.Day], clockSpan{open: open, close: clos})
	}

	return s, warnings
}

// parseTimeOfDay parses a local HH:MM:SS (or HH:MM) string into an offset
// from midnight. "24:00:00" is accepted as an explicit end-of-day.
func parseTimeOfDay(s string) (time.Duration, error) {
	v := strings.TrimSpace(s)
	if v == "24:00:00" || v == "24:00" {
		return dayLength, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("unrecognized time of day %q", s)
}

// weekdayIndex maps Go's Sunday-based weekday to the Monday-based index used
// by the business_hours feed.
func weekdayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}
