package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DB is the BadgerDB-backed implementation of Store.
type DB struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (creating if necessary) the database directory.
func Open(path string) (*DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logging is too chatty for a service log
	opts.NumVersionsToKeep = 1
	opts.ValueThreshold = 1 << 10 // poll rows stay in the LSM tree, report payloads go to the value log
	opts.IndexCacheSize = 64 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", path, err)
	}

	return &DB{
		db:  db,
		log: log.With().Str("component", "storage").Logger(),
	}, nil
}

// Close flushes and closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// pollValue is the stored form of one poll. The timestamp keeps its original
// source encoding; the key carries the parsed instant.
type pollValue struct {
	Status       string `json:"status"`
	TimestampUTC string `json:"timestamp_utc"`
}

// PollRecord is one raw store_status row as read from the feed.
type PollRecord struct {
	StoreID      string
	Status       string
	TimestampUTC string
}

// HoursRecord is one raw business_hours row.
type HoursRecord struct {
	StoreID string
	Day     int
	Open    string
	Close   string
}

// TZRecord is one raw timezones row.
type TZRecord struct {
	StoreID string
	Zone    string
}

// IngestStats summarizes one batched ingest call.
type IngestStats struct {
	Stored     int
	Duplicates int
	Malformed  int
}

const ingestChunk = 1000

// PutPolls ingests store_status rows in chunked transactions. Timestamps are
// parsed here (both source encodings accepted); rows that fail to parse are
// counted and skipped. An exact (store_id, timestamp) duplicate keeps the
// first stored row. The max-poll-timestamp meta key is maintained in the
// same transactions.
func (d *DB) PutPolls(ctx context.Context, recs []PollRecord) (IngestStats, error) {
	var stats IngestStats

	for len(recs) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n := len(recs)
		if n > ingestChunk {
			n = ingestChunk
		}
		chunk := recs[:n]
		recs = recs[n:]

		err := d.db.Update(func(txn *badger.Txn) error {
			var chunkMax time.Time
			for _, rec := range chunk {
				ts, err := ParseTimestamp(rec.TimestampUTC)
				if err != nil {
					stats.Malformed++
					d.log.Warn().Str("store_id", rec.StoreID).Str("value", rec.TimestampUTC).Msg("Skipping poll with unparseable timestamp")
					continue
				}

				key := pollKey(rec.StoreID, ts)
				if _, err := txn.Get(key); err == nil {
					stats.Duplicates++
					continue
				} else if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}

				val, err := json.Marshal(pollValue{Status: rec.Status, TimestampUTC: rec.TimestampUTC})
				if err != nil {
					return err
				}
				if err := txn.Set(key, val); err != nil {
					return err
				}
				if err := txn.Set([]byte(prefixIDStatus+rec.StoreID), nil); err != nil {
					return err
				}
				stats.Stored++
				if ts.After(chunkMax) {
					chunkMax = ts
				}
			}
			if chunkMax.IsZero() {
				return nil
			}
			return bumpMaxPoll(txn, chunkMax)
		})
		if err != nil {
			return stats, fmt.Errorf("poll ingest: %w", err)
		}
	}

	return stats, nil
}

// bumpMaxPoll advances the meta key if ts is newer than the stored maximum.
func bumpMaxPoll(txn *badger.Txn, ts time.Time) error {
	item, err := txn.Get([]byte(keyMaxPollTS))
	switch {
	case err == nil:
		var stored time.Time
		if err := item.Value(func(v []byte) error {
			var derr error
			stored, derr = decodeNanos(string(v))
			return derr
		}); err != nil {
			return err
		}
		if !ts.After(stored) {
			return nil
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}
	return txn.Set([]byte(keyMaxPollTS), []byte(encodeNanos(ts)))
}

// PutBusinessHours ingests business_hours rows. Day must already be a valid
// 0..6 weekday; open/close strings are stored raw and validated at use.
func (d *DB) PutBusinessHours(ctx context.Context, recs []HoursRecord) (int, error) {
	stored := 0
	for len(recs) > 0 {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		n := len(recs)
		if n > ingestChunk {
			n = ingestChunk
		}
		chunk := recs[:n]
		recs = recs[n:]

		err := d.db.Update(func(txn *badger.Txn) error {
			for _, rec := range chunk {
				entry := ScheduleEntry{Day: rec.Day, Open: rec.Open, Close: rec.Close}
				val, err := json.Marshal(entry)
				if err != nil {
					return err
				}
				if err := txn.Set(hoursKey(rec.StoreID, rec.Day, rec.Open), val); err != nil {
					return err
				}
				if err := txn.Set([]byte(prefixIDHours+rec.StoreID), nil); err != nil {
					return err
				}
				stored++
			}
			return nil
		})
		if err != nil {
			return stored, fmt.Errorf("business hours ingest: %w", err)
		}
	}
	return stored, nil
}

// PutTimezones ingests timezone rows. The zone string is not validated here;
// an unknown zone falls back to the default at estimation time.
func (d *DB) PutTimezones(ctx context.Context, recs []TZRecord) (int, error) {
	stored := 0
	for len(recs) > 0 {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		n := len(recs)
		if n > ingestChunk {
			n = ingestChunk
		}
		chunk := recs[:n]
		recs = recs[n:]

		err := d.db.Update(func(txn *badger.Txn) error {
			for _, rec := range chunk {
				if err := txn.Set(tzKey(rec.StoreID), []byte(rec.Zone)); err != nil {
					return err
				}
				if err := txn.Set([]byte(prefixIDTZ+rec.StoreID), nil); err != nil {
					return err
				}
				stored++
			}
			return nil
		})
		if err != nil {
			return stored, fmt.Errorf("timezone ingest: %w", err)
		}
	}
	return stored, nil
}

// StoreIDs returns the sorted union of store ids seen across all three
// source tables.
func (d *DB) StoreIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	err := d.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{prefixIDStatus, prefixIDHours, prefixIDTZ} {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(prefix)
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				seen[idFromKey(it.Item().Key(), prefix)] = struct{}{}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MaxPollTimestamp returns the newest poll timestamp across all stores, or
// ErrNoData when no polls have ever been ingested.
func (d *DB) MaxPollTimestamp(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	var ts time.Time
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyMaxPollTS))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoData
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			var derr error
			ts, derr = decodeNanos(string(v))
			return derr
		})
	})
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// PollsInRange returns one store's polls with start <= t <= end in ascending
// timestamp order.
func (d *DB) PollsInRange(ctx context.Context, storeID string, start, end time.Time) ([]Poll, error) {
	if end.Before(start) {
		return nil, nil
	}

	var polls []Poll
	endKey := pollKey(storeID, end)

	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pollPrefix(storeID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(pollKey(storeID, start)); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if bytes.Compare(item.Key(), endKey) > 0 {
				break
			}
			var pv pollValue
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &pv)
			}); err != nil {
				return err
			}
			ts, err := ParseTimestamp(pv.TimestampUTC)
			if err != nil {
				// Key order is derived from the parsed timestamp at ingest,
				// so this only happens on corruption. Drop the row.
				d.log.Warn().Str("store_id", storeID).Str("value", pv.TimestampUTC).Msg("Dropping corrupt poll row")
				continue
			}
			polls = append(polls, Poll{StoreID: storeID, Status: pv.Status, Timestamp: ts})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return polls, nil
}

// Timezone returns the store's zone string, or "" when the store has no
// timezone row.
func (d *DB) Timezone(ctx context.Context, storeID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var zone string
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tzKey(storeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			zone = string(v)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return zone, nil
}

// Schedule returns the store's business-hours entries ordered by weekday
// then opening time. An empty result means the store has no schedule rows
// and the caller should assume 24x7.
func (d *DB) Schedule(ctx context.Context, storeID string) ([]ScheduleEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []ScheduleEntry
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = hoursPrefix(storeID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry ScheduleEntry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateReport writes a new report record in the Running state.
func (d *DB) CreateReport(ctx context.Context, reportID string, createdAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		key := reportKey(reportID)
		if _, err := txn.Get(key); err == nil {
			return ErrReportExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		rec := Report{ReportID: reportID, Status: ReportRunning, CreatedAt: createdAt.UTC()}
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, val)
	})
}

// CompleteReport transitions a Running report to Complete with its payload.
func (d *DB) CompleteReport(ctx context.Context, reportID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.finalizeReport(reportID, func(rec *Report) {
		rec.Status = ReportComplete
		rec.Payload = payload
	})
}

// FailReport transitions a Running report to Failed with a reason.
func (d *DB) FailReport(ctx context.Context, reportID string, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.finalizeReport(reportID, func(rec *Report) {
		rec.Status = ReportFailed
		rec.Reason = reason
	})
}

// finalizeReport applies a terminal transition under the exactly-once rule.
func (d *DB) finalizeReport(reportID string, mutate func(*Report)) error {
	return d.db.Update(func(txn *badger.Txn) error {
		key := reportKey(reportID)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("report %s: not found", reportID)
		}
		if err != nil {
			return err
		}
		var rec Report
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &rec)
		}); err != nil {
			return err
		}
		if rec.Status != ReportRunning {
			return ErrReportFinal
		}
		mutate(&rec)
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, val)
	})
}

// Report returns the stored report record, or (nil, nil) when the id is
// unknown.
func (d *DB) Report(ctx context.Context, reportID string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Report
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(reportKey(reportID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			var r Report
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			rec = &r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
