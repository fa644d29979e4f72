package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key layout. Poll keys embed the timestamp as zero-padded decimal
// nanoseconds so lexicographic order equals chronological order and range
// reads become bounded prefix scans.
//
//	poll/<store_id>/<unix_nanos %020d> -> pollValue JSON
//	hours/<store_id>/<day>/<open>     -> ScheduleEntry JSON
//	tz/<store_id>                     -> zone string
//	ids/{status,hours,tz}/<store_id>  -> empty (distinct-id indices)
//	report/<report_id>                -> Report JSON
//	meta/max_poll_ts                  -> unix nanos %020d
const (
	prefixPoll     = "poll/"
	prefixHours    = "hours/"
	prefixTZ       = "tz/"
	prefixReport   = "report/"
	prefixIDStatus = "ids/status/"
	prefixIDHours  = "ids/hours/"
	prefixIDTZ     = "ids/tz/"
	keyMaxPollTS   = "meta/max_poll_ts"
)

func encodeNanos(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

func decodeNanos(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp key %q: %w", s, err)
	}
	return time.Unix(0, n).UTC(), nil
}

func pollKey(storeID string, t time.Time) []byte {
	return []byte(prefixPoll + storeID + "/" + encodeNanos(t))
}

func pollPrefix(storeID string) []byte {
	return []byte(prefixPoll + storeID + "/")
}

func hoursKey(storeID string, day int, open string) []byte {
	return []byte(prefixHours + storeID + "/" + strconv.Itoa(day) + "/" + open)
}

func hoursPrefix(storeID string) []byte {
	return []byte(prefixHours + storeID + "/")
}

func tzKey(storeID string) []byte {
	return []byte(prefixTZ + storeID)
}

func reportKey(reportID string) []byte {
	return []byte(prefixReport + reportID)
}

// idFromKey strips a known prefix from an index key, returning the store id.
func idFromKey(key []byte, prefix string) string {
	return strings.TrimPrefix(string(key), prefix)
}
