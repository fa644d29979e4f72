package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is a thread-safe in-memory Store. It backs tests and small
// one-shot runs where spinning up a database directory is not worth it.
type MemStore struct {
	mu      sync.RWMutex
	polls   map[string][]Poll // partitioned by store id, ascending by timestamp
	zones   map[string]string
	hours   map[string][]ScheduleEntry
	reports map[string]*Report
	known   map[string]struct{} // union of ids across all three tables
	maxPoll time.Time
}

// NewMemStore creates a new empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		polls:   make(map[string][]Poll),
		zones:   make(map[string]string),
		hours:   make(map[string][]ScheduleEntry),
		reports: make(map[string]*Report),
		known:   make(map[string]struct{}),
	}
}

// AddPoll ingests one store_status row. The timestamp may use either source
// encoding. Exact (store_id, timestamp) duplicates keep the first row.
func (s *MemStore) AddPoll(storeID, status, timestampUTC string) error {
	ts, err := ParseTimestamp(timestampUTC)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.polls[storeID]
	for _, p := range log {
		if p.Timestamp.Equal(ts) {
			return nil // first write wins
		}
	}
	log = append(log, Poll{StoreID: storeID, Status: status, Timestamp: ts})

	sort.Slice(log, func(i, j int) bool {
		return log[i].Timestamp.Before(log[j].Timestamp)
	})

	s.polls[storeID] = log
	s.known[storeID] = struct{}{}
	if ts.After(s.maxPoll) {
		s.maxPoll = ts
	}
	return nil
}

// SetTimezone ingests one timezones row.
func (s *MemStore) SetTimezone(storeID, zone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[storeID] = zone
	s.known[storeID] = struct{}{}
}

// AddHours ingests one business_hours row.
func (s *MemStore) AddHours(storeID string, day int, open, closing string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.hours[storeID], ScheduleEntry{Day: day, Open: open, Close: closing})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Day != entries[j].Day {
			return entries[i].Day < entries[j].Day
		}
		return entries[i].Open < entries[j].Open
	})
	s.hours[storeID] = entries
	s.known[storeID] = struct{}{}
}

// StoreIDs returns the sorted union of store ids across all three tables.
func (s *MemStore) StoreIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.known))
	for id := range s.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MaxPollTimestamp returns the newest ingested poll timestamp, or ErrNoData
// when the store holds no polls.
func (s *MemStore) MaxPollTimestamp(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.maxPoll.IsZero() {
		return time.Time{}, ErrNoData
	}
	return s.maxPoll, nil
}

// PollsInRange returns a copy of one store's polls with start <= t <= end.
func (s *MemStore) PollsInRange(ctx context.Context, storeID string, start, end time.Time) ([]Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Poll
	for _, p := range s.polls[storeID] {
		if !p.Timestamp.Before(start) && !p.Timestamp.After(end) {
			result = append(result, p)
		}
	}
	return result, nil
}

// Timezone returns the store's zone string, or "" when absent.
func (s *MemStore) Timezone(ctx context.Context, storeID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zones[storeID], nil
}

// Schedule returns the store's business-hours entries ordered by weekday
// then opening time; empty means no schedule rows exist.
func (s *MemStore) Schedule(ctx context.Context, storeID string) ([]ScheduleEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]ScheduleEntry, len(s.hours[storeID]))
	copy(entries, s.hours[storeID])
	return entries, nil
}

// CreateReport writes a new report record in the Running state.
func (s *MemStore) CreateReport(ctx context.Context, reportID string, createdAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[reportID]; ok {
		return ErrReportExists
	}
	s.reports[reportID] = &Report{ReportID: reportID, Status: ReportRunning, CreatedAt: createdAt.UTC()}
	return nil
}

// CompleteReport transitions a Running report to Complete with its payload.
func (s *MemStore) CompleteReport(ctx context.Context, reportID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.finalize(reportID, func(rec *Report) {
		rec.Status = ReportComplete
		rec.Payload = payload
	})
}

// FailReport transitions a Running report to Failed with a reason.
func (s *MemStore) FailReport(ctx context.Context, reportID string, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.finalize(reportID, func(rec *Report) {
		rec.Status = ReportFailed
		rec.Reason = reason
	})
}

func (s *MemStore) finalize(reportID string, mutate func(*Report)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.reports[reportID]
	if !ok {
		return fmt.Errorf("report %s: not found", reportID)
	}
	if rec.Status != ReportRunning {
		return ErrReportFinal
	}
	mutate(rec)
	return nil
}

// Report returns a copy of the stored report record, or (nil, nil) when the
// id is unknown.
func (s *MemStore) Report(ctx context.Context, reportID string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.reports[reportID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}
