package uptime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storewatch/internal/storage"
)

const (
	retryAttempts  = 4 // initial call plus three retries
	retryBaseDelay = 100 * time.Millisecond
)

// quadDelay implements the 100ms, 400ms, 1.6s retry ladder.
func quadDelay(n uint, _ error, _ *retry.Config) time.Duration {
	return retryBaseDelay << (2 * n)
}

// Estimator computes report rows one store at a time. It holds no per-store
// state; every call is a pure function of (store_id, now) plus whatever the
// data access handle returns.
type Estimator struct {
	store storage.Store
	zones *ZoneCache
	log   zerolog.Logger
}

// NewEstimator creates an estimator over the given store handle.
func NewEstimator(store storage.Store, zones *ZoneCache) *Estimator {
	return &Estimator{
		store: store,
		zones: zones,
		log:   log.With().Str("component", "estimator").Logger(),
	}
}

// Estimate computes one store's report row at the shared reference instant.
// Per-store faults that have a defined degradation (unknown zone, malformed
// schedule entries, an empty poll sequence) are folded into the row's
// warnings; data-access failures that survive the retry policy are returned
// as errors for the driver to classify.
func (e *Estimator) Estimate(ctx context.Context, storeID string, now time.Time) (Row, error) {
	from := now.Add(-ReferenceWindow)
	var warnings []string

	// 1. Resolve the zone. A missing row silently uses the fallback; an
	// unparseable zone name uses it too but gets flagged.
	zoneName, err := e.timezone(ctx, storeID)
	if err != nil {
		return Row{}, fmt.Errorf("timezone: %w", err)
	}
	loc, err := e.zones.Resolve(zoneName)
	if err != nil {
		warnings = append(warnings, "unknown_zone:"+zoneName)
	}

	// 2. Resolve the schedule; no rows at all means always open.
	entries, err := e.schedule(ctx, storeID)
	if err != nil {
		return Row{}, fmt.Errorf("schedule: %w", err)
	}
	sched := Default24x7()
	if len(entries) > 0 {
		var schedWarnings []string
		sched, schedWarnings = ParseSchedule(entries)
		warnings = append(warnings, schedWarnings...)
	}

	// 3. Read the week's polls, inclusive on both bounds.
	polls, err := e.polls(ctx, storeID, from, now)
	if err != nil {
		return Row{}, fmt.Errorf("polls: %w", err)
	}

	// 4. Materialize windows and reconstruct the status signal.
	windows := BusinessWindows(sched, loc, now)
	segments, noPolls := BuildSegments(polls, from, now)
	if noPolls {
		warnings = append(warnings, "no_polls")
	}

	// 5. Accumulate once per reporting scope. Day and hour figures reuse the
	// same signal against clipped window sets.
	week := Accumulate(segments, windows)
	day := Accumulate(segments, ClipWindows(windows, now.Add(-24*time.Hour), now))
	hour := Accumulate(segments, ClipWindows(windows, now.Add(-time.Hour), now))

	return buildRow(storeID, hour, day, week, warnings), nil
}

func (e *Estimator) timezone(ctx context.Context, storeID string) (string, error) {
	var zone string
	err := retry.Do(func() error {
		var rerr error
		zone, rerr = e.store.Timezone(ctx, storeID)
		return rerr
	}, e.retryOpts(ctx, storeID, "timezone")...)
	return zone, err
}

func (e *Estimator) schedule(ctx context.Context, storeID string) ([]storage.ScheduleEntry, error) {
	var entries []storage.ScheduleEntry
	err := retry.Do(func() error {
		var rerr error
		entries, rerr = e.store.Schedule(ctx, storeID)
		return rerr
	}, e.retryOpts(ctx, storeID, "schedule")...)
	return entries, err
}

func (e *Estimator) polls(ctx context.Context, storeID string, from, to time.Time) ([]storage.Poll, error) {
	var polls []storage.Poll
	err := retry.Do(func() error {
		var rerr error
		polls, rerr = e.store.PollsInRange(ctx, storeID, from, to)
		return rerr
	}, e.retryOpts(ctx, storeID, "polls")...)
	return polls, err
}

// retryOpts is the shared transient-fault policy for data access: three
// retries on top of the initial attempt, quadrupling delays, aborted early
// once the context is done.
func (e *Estimator) retryOpts(ctx context.Context, storeID, op string) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.DelayType(quadDelay),
		retry.OnRetry(func(n uint, err error) {
			e.log.Debug().
				Str("store_id", storeID).
				Str("op", op).
				Uint("attempt", n+1).
				Err(err).
				Msg("Retrying data access")
		}),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	}
}
