package storage

import (
	"context"
	"errors"
	"time"
)

// Poll statuses as they appear in the source data.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Report lifecycle statuses. NotFound is synthesized by lookups for ids that
// were never created; it is never stored.
const (
	ReportRunning  = "Running"
	ReportComplete = "Complete"
	ReportFailed   = "Failed"
	ReportNotFound = "NotFound"
)

var (
	// ErrNoData indicates the store holds no polls at all, so no reference
	// instant can be derived.
	ErrNoData = errors.New("no poll data")

	// ErrReportExists indicates a report id collision on create.
	ErrReportExists = errors.New("report already exists")

	// ErrReportFinal indicates an attempt to transition a report that has
	// already left the Running state.
	ErrReportFinal = errors.New("report already finalized")
)

// Poll is one observation of a store's operational status.
type Poll struct {
	StoreID   string    `json:"store_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp_utc"`
}

// ScheduleEntry is one local business-hours window for one weekday.
// Day uses 0=Monday through 6=Sunday. Open and Close are kept as the raw
// HH:MM:SS strings from the source data; they are validated at use, not at
// ingest, so a malformed entry degrades a single window rather than a load.
type ScheduleEntry struct {
	Day   int    `json:"day_of_week"`
	Open  string `json:"start_time_local"`
	Close string `json:"end_time_local"`
}

// Report is the persisted record of one report run.
type Report struct {
	ReportID  string    `json:"report_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Payload   []byte    `json:"payload,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Store is the data access contract consumed by the estimator and the report
// driver. Reads are safe for concurrent use. PollsInRange is inclusive on
// both bounds and returns polls in ascending timestamp order with exact
// duplicate timestamps already collapsed to the first write.
type Store interface {
	StoreIDs(ctx context.Context) ([]string, error)
	MaxPollTimestamp(ctx context.Context) (time.Time, error)
	PollsInRange(ctx context.Context, storeID string, start, end time.Time) ([]Poll, error)
	Timezone(ctx context.Context, storeID string) (string, error)
	Schedule(ctx context.Context, storeID string) ([]ScheduleEntry, error)

	CreateReport(ctx context.Context, reportID string, createdAt time.Time) error
	CompleteReport(ctx context.Context, reportID string, payload []byte) error
	FailReport(ctx context.Context, reportID string, reason string) error
	Report(ctx context.Context, reportID string) (*Report, error)
}
