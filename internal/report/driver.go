package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"storewatch/internal/storage"
	"storewatch/internal/uptime"
)

// ErrQueueFull is returned by Trigger when the pending-report queue cannot
// accept another job.
var ErrQueueFull = errors.New("report queue full")

const queueDepth = 64

// Options tunes the driver's fan-out behavior.
type Options struct {
	// Workers bounds the per-store fan-out; the reference choice is the
	// number of available cores.
	Workers int
	// StoreTimeout bounds one store's estimation.
	StoreTimeout time.Duration
}

type job struct {
	reportID string
	ctx      context.Context
}

// Driver owns the report lifecycle: it accepts triggers, runs one generation
// job at a time over a bounded per-store worker pool, and writes the final
// record. It is the only component that mutates report records.
type Driver struct {
	store storage.Store
	est   *uptime.Estimator
	opts  Options
	log   zerolog.Logger

	queue chan job

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewDriver creates a driver over the given store and estimator.
func NewDriver(store storage.Store, est *uptime.Estimator, opts Options) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 30 * time.Second
	}
	return &Driver{
		store:   store,
		est:     est,
		opts:    opts,
		log:     log.With().Str("component", "report-driver").Logger(),
		queue:   make(chan job, queueDepth),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Trigger creates a new report record in the Running state and enqueues its
// generation. The record exists before Trigger returns, so a lookup for the
// returned id never misses.
func (d *Driver) Trigger(ctx context.Context) (string, error) {
	reportID := uuid.NewString()
	if err := d.store.CreateReport(ctx, reportID, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.cancels[reportID] = cancel
	d.mu.Unlock()

	select {
	case d.queue <- job{reportID: reportID, ctx: jobCtx}:
	default:
		d.release(reportID)
		d.finalize(reportID, ErrQueueFull)
		return "", ErrQueueFull
	}

	d.log.Info().Str("report_id", reportID).Msg("Report queued")
	return reportID, nil
}

// Cancel aborts a queued or running report. The record transitions to
// Failed(reason="cancelled") immediately; an in-flight generation observes
// its context at the next suspension point and discards partial results.
func (d *Driver) Cancel(ctx context.Context, reportID string) error {
	if err := d.store.FailReport(ctx, reportID, "cancelled"); err != nil {
		return err
	}
	d.release(reportID)
	d.log.Info().Str("report_id", reportID).Msg("Report cancelled")
	return nil
}

// Run consumes the queue until ctx is done. One generation job runs at a
// time; triggers accepted during a run wait their turn in FIFO order.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-d.queue:
			if j.ctx.Err() != nil {
				continue // cancelled while queued; record is already Failed
			}
			// A driver shutdown cancels the running job too.
			stop := context.AfterFunc(ctx, func() { d.release(j.reportID) })
			started := time.Now()
			rows, err := d.Generate(j.ctx, j.reportID)
			stop()
			d.release(j.reportID)

			evt := d.log.Info()
			if err != nil {
				evt = d.log.Error().Err(err)
			}
			evt.Str("report_id", j.reportID).
				Int("stores", len(rows)).
				Dur("elapsed", time.Since(started)).
				Msg("Report finished")
		}
	}
}

// Generate runs the full pipeline for one already-created report record:
// resolve the reference instant, fan the estimator out across the store
// universe, render the payload, and finalize the record. The returned rows
// are sorted by store id, matching the payload.
func (d *Driver) Generate(ctx context.Context, reportID string) ([]uptime.Row, error) {
	now, err := d.store.MaxPollTimestamp(ctx)
	if err != nil {
		d.finalize(reportID, fmt.Errorf("resolve reference instant: %w", err))
		return nil, err
	}

	rows, err := d.compute(ctx, now)
	if err != nil {
		d.finalize(reportID, err)
		return nil, err
	}

	payload := RenderCSV(rows)
	// Finalization must survive a cancelled generation context.
	if err := d.store.CompleteReport(context.WithoutCancel(ctx), reportID, payload); err != nil {
		if errors.Is(err, storage.ErrReportFinal) {
			// Cancelled under us; the Failed record stands, results are dropped.
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("complete report: %w", err)
	}
	return rows, nil
}

// compute fans the estimator out across the store universe and collects one
// row per store, ordered by store id. Per-store faults degrade to zero rows
// with a diagnostic; only a cancelled report aborts the whole computation.
func (d *Driver) compute(ctx context.Context, now time.Time) ([]uptime.Row, error) {
	ids, err := d.store.StoreIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("store universe: %w", err)
	}

	// ids arrive sorted, so indexing the results by position keeps the
	// payload bytes reproducible without a second sort.
	rows := make([]uptime.Row, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, id := range ids {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, d.opts.StoreTimeout)
			defer cancel()

			row, err := d.est.Estimate(sctx, id, now)
			switch {
			case err == nil:
				rows[i] = row
			case gctx.Err() != nil:
				return gctx.Err()
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(sctx.Err(), context.DeadlineExceeded):
				d.log.Warn().Str("store_id", id).Dur("deadline", d.opts.StoreTimeout).Msg("Store estimation timed out")
				rows[i] = uptime.ZeroRow(id, "timeout")
			default:
				d.log.Warn().Str("store_id", id).Err(err).Msg("Store estimation failed")
				rows[i] = uptime.ZeroRow(id, "failed:"+err.Error())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// finalize records a failed generation. Cancellation is recorded by Cancel
// itself, so a finalize racing a cancelled record is a no-op.
func (d *Driver) finalize(reportID string, cause error) {
	reason := cause.Error()
	if errors.Is(cause, context.Canceled) {
		reason = "cancelled"
	}
	if err := d.store.FailReport(context.Background(), reportID, reason); err != nil && !errors.Is(err, storage.ErrReportFinal) {
		d.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to record report failure")
	}
}

// release drops and fires the cancel hook for a report, if still registered.
func (d *Driver) release(reportID string) {
	d.mu.Lock()
	cancel, ok := d.cancels[reportID]
	if ok {
		delete(d.cancels, reportID)
	}
	d.mu.Unlock()
	if ok {
		cancel()
	}
}
