package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storewatch/internal/storage"
)

// Sink receives the parsed feed rows in batches. *storage.DB implements it.
type Sink interface {
	PutPolls(ctx context.Context, recs []storage.PollRecord) (storage.IngestStats, error)
	PutBusinessHours(ctx context.Context, recs []storage.HoursRecord) (int, error)
	PutTimezones(ctx context.Context, recs []storage.TZRecord) (int, error)
}

// Stats summarizes one load run per feed file.
type Stats struct {
	Polls     storage.IngestStats
	Hours     int
	HoursBad  int
	Timezones int
	TZBad     int
}

const batchSize = 5000

// Load ingests the three feed files from dir: store_status.csv,
// business_hours.csv, and timezones.csv. Columns are located by header name,
// with the legacy spellings (dayOfWeek, zone_id) accepted. Malformed rows are
// skipped and counted; a missing file skips that feed with a warning rather
// than failing the run.
func Load(ctx context.Context, sink Sink, dir string) (Stats, error) {
	logger := log.With().Str("component", "loader").Logger()
	var stats Stats

	if err := loadPolls(ctx, sink, filepath.Join(dir, "store_status.csv"), &stats, logger); err != nil {
		return stats, err
	}
	if err := loadHours(ctx, sink, filepath.Join(dir, "business_hours.csv"), &stats, logger); err != nil {
		return stats, err
	}
	if err := loadTimezones(ctx, sink, filepath.Join(dir, "timezones.csv"), &stats, logger); err != nil {
		return stats, err
	}

	logger.Info().
		Int("polls", stats.Polls.Stored).
		Int("poll_duplicates", stats.Polls.Duplicates).
		Int("poll_malformed", stats.Polls.Malformed).
		Int("hours", stats.Hours).
		Int("timezones", stats.Timezones).
		Msg("Load finished")
	return stats, nil
}

func loadPolls(ctx context.Context, sink Sink, path string, stats *Stats, logger zerolog.Logger) error {
	return eachFeedRow(path, logger, []string{"store_id", "status", "timestamp_utc"}, func(rows *rowReader) error {
		var batch []storage.PollRecord
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			st, err := sink.PutPolls(ctx, batch)
			stats.Polls.Stored += st.Stored
			stats.Polls.Duplicates += st.Duplicates
			stats.Polls.Malformed += st.Malformed
			batch = batch[:0]
			return err
		}

		for rows.Next() {
			batch = append(batch, storage.PollRecord{
				StoreID:      rows.Field("store_id"),
				Status:       rows.Field("status"),
				TimestampUTC: rows.Field("timestamp_utc"),
			})
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return flush()
	})
}

func loadHours(ctx context.Context, sink Sink, path string, stats *Stats, logger zerolog.Logger) error {
	return eachFeedRow(path, logger, []string{"store_id", "start_time_local", "end_time_local"}, func(rows *rowReader) error {
		var batch []storage.HoursRecord
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := sink.PutBusinessHours(ctx, batch)
			stats.Hours += n
			batch = batch[:0]
			return err
		}

		for rows.Next() {
			// The feed has shipped both spellings of the weekday column.
			dayField := rows.Field("day_of_week")
			if dayField == "" {
				dayField = rows.Field("dayOfWeek")
			}
			day, err := strconv.Atoi(dayField)
			if err != nil || day < 0 || day > 6 {
				stats.HoursBad++
				logger.Warn().Str("store_id", rows.Field("store_id")).Str("day", dayField).Msg("Skipping business_hours row with bad weekday")
				continue
			}
			batch = append(batch, storage.HoursRecord{
				StoreID: rows.Field("store_id"),
				Day:     day,
				Open:    rows.Field("start_time_local"),
				Close:   rows.Field("end_time_local"),
			})
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return flush()
	})
}

func loadTimezones(ctx context.Context, sink Sink, path string, stats *Stats, logger zerolog.Logger) error {
	return eachFeedRow(path, logger, []string{"store_id"}, func(rows *rowReader) error {
		var batch []storage.TZRecord
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := sink.PutTimezones(ctx, batch)
			stats.Timezones += n
			batch = batch[:0]
			return err
		}

		for rows.Next() {
			zone := rows.Field("timezone_str")
			if zone == "" {
				zone = rows.Field("zone_id")
			}
			if zone == "" {
				stats.TZBad++
				logger.Warn().Str("store_id", rows.Field("store_id")).Msg("Skipping timezones row with empty zone")
				continue
			}
			batch = append(batch, storage.TZRecord{StoreID: rows.Field("store_id"), Zone: zone})
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return flush()
	})
}

// eachFeedRow opens one feed file, validates its required header columns,
// and hands a header-aware row cursor to fn. A missing file is logged and
// skipped.
func eachFeedRow(path string, logger zerolog.Logger, required []string, fn func(*rowReader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", path).Msg("Feed file missing, skipping")
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("%s: missing required column %q", path, name)
		}
	}

	logger.Info().Str("path", path).Msg("Loading feed file")
	return fn(&rowReader{r: r, cols: cols})
}

// rowReader is a cursor over one CSV feed with by-name field access.
type rowReader struct {
	r    *csv.Reader
	cols map[string]int
	row  []string
	err  error
}

func (rr *rowReader) Next() bool {
	row, err := rr.r.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		rr.err = err
		return false
	}
	rr.row = row
	return true
}

// Field returns the named column of the current row, or "" when the column
// is absent or the row is short.
func (rr *rowReader) Field(name string) string {
	i, ok := rr.cols[name]
	if !ok || i >= len(rr.row) {
		return ""
	}
	return rr.row[i]
}

func (rr *rowReader) Err() error {
	return rr.err
}
