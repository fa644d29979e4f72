package report

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storewatch/internal/storage"
)

// TestRandomFleetProperties drives the whole pipeline over a seeded random
// fleet and checks the bounds that must hold for any input: metrics are
// non-negative, no window's uptime+downtime exceeds its span, and shorter
// windows never report more than longer ones.
func TestRandomFleetProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(2024)) // fixed seed for stable randomness
	mem := storage.NewMemStore()

	zones := []string{"UTC", "America/New_York", "America/Chicago", "Asia/Kolkata", "Europe/Berlin"}
	now := time.Date(2024, time.March, 13, 16, 0, 0, 0, time.UTC) // week straddles a DST jump
	from := now.Add(-7 * 24 * time.Hour)

	// An anchor poll fixes the reference instant regardless of what the
	// random stores draw.
	if err := mem.AddPoll("anchor", storage.StatusActive, now.Format(time.RFC3339)); err != nil {
		t.Fatal(err)
	}
	mem.SetTimezone("anchor", "UTC")

	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("rnd-%03d", i)
		mem.SetTimezone(id, zones[rng.Intn(len(zones))])

		// Roughly a third of the fleet keeps the 24x7 default.
		if rng.Float64() < 0.66 {
			for day := 0; day < 7; day++ {
				if rng.Float64() < 0.2 {
					continue // closed that day
				}
				openH := rng.Intn(12)
				closeH := openH + 1 + rng.Intn(23-openH)
				mem.AddHours(id, day,
					fmt.Sprintf("%02d:00:00", openH),
					fmt.Sprintf("%02d:00:00", closeH))
			}
		}

		// Sparse, irregular polls; some stores have none at all.
		n := rng.Intn(60)
		for p := 0; p < n; p++ {
			at := from.Add(time.Duration(rng.Int63n(int64(7 * 24 * time.Hour))))
			status := storage.StatusActive
			if rng.Float64() < 0.3 {
				status = storage.StatusInactive
			}
			if err := mem.AddPoll(id, status, at.Format(time.RFC3339Nano)); err != nil {
				t.Fatal(err)
			}
		}
	}

	rows := generate(t, newTestDriver(t, mem), mem, "r-prop")
	if len(rows) != 41 {
		t.Fatalf("got %d rows, want 41", len(rows))
	}

	eps := decimal.RequireFromString("0.01")
	sixty := decimal.NewFromInt(60)
	hourBudget := decimal.NewFromInt(60) // minutes
	dayBudget := decimal.NewFromInt(24)  // hours
	weekBudget := decimal.NewFromInt(168)

	for _, r := range rows {
		metrics := []decimal.Decimal{
			r.UptimeLastHour, r.UptimeLastDay, r.UptimeLastWeek,
			r.DowntimeLastHour, r.DowntimeLastDay, r.DowntimeLastWeek,
		}
		for i, m := range metrics {
			if m.IsNegative() {
				t.Errorf("%s: metric %d is negative: %s", r.StoreID, i, m)
			}
		}

		// Budget bound: totals cannot exceed the reporting window, whatever
		// the schedule carved out of it.
		if sum := r.UptimeLastHour.Add(r.DowntimeLastHour); sum.GreaterThan(hourBudget.Add(eps)) {
			t.Errorf("%s: hour totals %s exceed 60 minutes", r.StoreID, sum)
		}
		if sum := r.UptimeLastDay.Add(r.DowntimeLastDay); sum.GreaterThan(dayBudget.Add(eps)) {
			t.Errorf("%s: day totals %s exceed 24 hours", r.StoreID, sum)
		}
		if sum := r.UptimeLastWeek.Add(r.DowntimeLastWeek); sum.GreaterThan(weekBudget.Add(eps)) {
			t.Errorf("%s: week totals %s exceed 168 hours", r.StoreID, sum)
		}

		// Monotone refinement: the hour is inside the day, the day inside
		// the week.
		if r.UptimeLastHour.Div(sixty).GreaterThan(r.UptimeLastDay.Add(eps)) {
			t.Errorf("%s: hour uptime %s min exceeds day uptime %s h", r.StoreID, r.UptimeLastHour, r.UptimeLastDay)
		}
		if r.UptimeLastDay.GreaterThan(r.UptimeLastWeek.Add(eps)) {
			t.Errorf("%s: day uptime %s exceeds week uptime %s", r.StoreID, r.UptimeLastDay, r.UptimeLastWeek)
		}
		if r.DowntimeLastHour.Div(sixty).GreaterThan(r.DowntimeLastDay.Add(eps)) {
			t.Errorf("%s: hour downtime %s min exceeds day downtime %s h", r.StoreID, r.DowntimeLastHour, r.DowntimeLastDay)
		}
		if r.DowntimeLastDay.GreaterThan(r.DowntimeLastWeek.Add(eps)) {
			t.Errorf("%s: day downtime %s exceeds week downtime %s", r.StoreID, r.DowntimeLastDay, r.DowntimeLastWeek)
		}
	}
}
