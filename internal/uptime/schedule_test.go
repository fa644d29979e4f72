package uptime

import (
	"strings"
	"testing"
	"time"

	"storewatch/internal/storage"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"midnight", "00:00:00", 0, false},
		{"morning", "09:00:00", 9 * time.Hour, false},
		{"with minutes and seconds", "13:45:30", 13*time.Hour + 45*time.Minute + 30*time.Second, false},
		{"short form", "09:30", 9*time.Hour + 30*time.Minute, false},
		{"explicit end of day", "24:00:00", dayLength, false},
		{"last second", "23:59:59", 23*time.Hour + 59*time.Minute + 59*time.Second, false},
		{"padded", " 09:00:00 ", 9 * time.Hour, false},
		{"garbage", "nine am", 0, true},
		{"hour overflow", "25:00:00", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeOfDay(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTimeOfDay(%q) succeeded with %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTimeOfDay(%q): %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseTimeOfDay(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseSchedule(t *testing.T) {
	sched, warnings := ParseSchedule([]storage.ScheduleEntry{
		{Day: 0, Open: "09:00:00", Close: "17:00:00"},
		{Day: 0, Open: "18:00:00", Close: "21:00:00"}, // split shift
		{Day: 1, Open: "00:00:00", Close: "23:59:59"}, // end-of-day close
		{Day: 2, Open: "17:00:00", Close: "09:00:00"}, // inverted: dropped silently
		{Day: 3, Open: "12:00:00", Close: "12:00:00"}, // zero-length: dropped silently
		{Day: 7, Open: "09:00:00", Close: "17:00:00"}, // bad weekday
		{Day: 4, Open: "breakfast", Close: "17:00:00"},
		{Day: 5, Open: "09:00:00", Close: "late"},
	})

	if got := len(sched.days[0]); got != 2 {
		t.Errorf("Monday has %d spans, want 2", got)
	}
	if got := sched.days[1]; len(got) != 1 || got[0].close != dayLength {
		t.Errorf("Tuesday close = %+v, want promotion to full day", got)
	}
	for _, day := range []int{2, 3} {
		if len(sched.days[day]) != 0 {
			t.Errorf("day %d should have no usable spans, got %+v", day, sched.days[day])
		}
	}

	if len(warnings) != 3 {
		t.Fatalf("warnings = %v, want 3 entries", warnings)
	}
	for _, w := range warnings {
		if !strings.HasPrefix(w, "parse_error:") {
			t.Errorf("warning %q does not carry the parse_error prefix", w)
		}
	}
}

func TestDefault24x7(t *testing.T) {
	sched := Default24x7()
	for day, spans := range sched.days {
		if len(spans) != 1 || spans[0].open != 0 || spans[0].close != dayLength {
			t.Errorf("day %d = %+v, want a single full-day span", day, spans)
		}
	}
}

func TestWeekdayIndex(t *testing.T) {
	tests := []struct {
		weekday  time.Weekday
		expected int
	}{
		{time.Monday, 0},
		{time.Tuesday, 1},
		{time.Saturday, 5},
		{time.Sunday, 6},
	}
	for _, tt := range tests {
		if got := weekdayIndex(tt.weekday); got != tt.expected {
			t.Errorf("weekdayIndex(%v) = %d, want %d", tt.weekday, got, tt.expected)
		}
	}
}
