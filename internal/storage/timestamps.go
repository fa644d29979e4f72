package storage

import (
	"fmt"
	"strings"
	"time"
)

// The source feeds carry timestamps in two encodings: ISO-8601 with an
// optional fractional part and optional zone designator, and the legacy
// "YYYY-MM-DD HH:MM:SS.ffffff UTC" form. Zone-less values are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,                 // 2023-01-25T10:04:00.152582Z / +05:30
	"2006-01-02T15:04:05.999999999",  // zone-less ISO-8601
	"2006-01-02 15:04:05.999999 UTC", // legacy export format
}

// ParseTimestamp parses a poll timestamp in either supported encoding and
// normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
