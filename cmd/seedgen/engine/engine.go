package engine

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// GeneratorConfig controls one synthetic dataset.
type GeneratorConfig struct {
	Scenario string // "steady", "flaky", or "night-owl"
	Stores   int
	Days     int
	Seed     int64
	Now      time.Time
}

// Dataset holds the generated rows for the three feed files.
type Dataset struct {
	Polls     [][]string
	Hours     [][]string
	Timezones [][]string
}

// zoneRotation spreads stores across a handful of real zones so DST and
// offset behavior shows up in generated data.
var zoneRotation = []string{
	"America/Chicago",
	"America/New_York",
	"America/Denver",
	"America/Los_Angeles",
	"Asia/Kolkata",
	"UTC",
}

// Generate produces a deterministic synthetic fleet. Polls arrive roughly
// hourly with jitter; the scenario shapes the active/inactive mix:
//
//	steady    — active with rare blips
//	flaky     — alternating outage stretches
//	night-owl — active outside conventional hours, schedules 18:00-23:59:59
//
// Every third store gets no schedule rows (24x7 by contract) and every
// seventh no timezone row (fallback zone by contract), mirroring the gaps in
// the real feeds.
func Generate(cfg GeneratorConfig) Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC().Truncate(time.Hour)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	var ds Dataset
	start := cfg.Now.Add(-time.Duration(cfg.Days) * 24 * time.Hour)

	for i := 0; i < cfg.Stores; i++ {
		storeID := fmt.Sprintf("store-%04d", i+1)

		if i%7 != 6 {
			ds.Timezones = append(ds.Timezones, []string{storeID, zoneRotation[i%len(zoneRotation)]})
		}

		if i%3 != 2 {
			openAt, closeAt := "09:00:00", "21:00:00"
			if cfg.Scenario == "night-owl" {
				openAt, closeAt = "18:00:00", "23:59:59"
			}
			for day := 0; day < 7; day++ {
				if day >= 5 && cfg.Scenario != "night-owl" && i%2 == 0 {
					continue // half the fleet closes on weekends
				}
				ds.Hours = append(ds.Hours, []string{storeID, fmt.Sprintf("%d", day), openAt, closeAt})
			}
		}

		outage := false
		for t := start; !t.After(cfg.Now); t = t.Add(time.Hour) {
			jitter := time.Duration(rng.Intn(600)-300) * time.Second
			at := t.Add(jitter)
			if at.After(cfg.Now) {
				at = cfg.Now
			}

			switch cfg.Scenario {
			case "flaky":
				if rng.Float64() < 0.1 {
					outage = !outage
				}
			case "night-owl":
				outage = at.Hour() >= 6 && at.Hour() < 18
				if rng.Float64() < 0.05 {
					outage = !outage
				}
			default: // steady
				outage = rng.Float64() < 0.02
			}

			status := "active"
			if outage {
				status = "inactive"
			}
			// Alternate the two timestamp encodings seen in the real feed.
			stamp := at.UTC().Format("2006-01-02 15:04:05.000000") + " UTC"
			if rng.Float64() < 0.5 {
				stamp = at.UTC().Format("2006-01-02T15:04:05.000000Z")
			}
			ds.Polls = append(ds.Polls, []string{storeID, status, stamp})
		}
	}

	return ds
}

// Save writes the dataset as the three feed CSV files under outDir.
func Save(outDir string, ds Dataset) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"store_status.csv", []string{"store_id", "status", "timestamp_utc"}, ds.Polls},
		{"business_hours.csv", []string{"store_id", "day_of_week", "start_time_local", "end_time_local"}, ds.Hours},
		{"timezones.csv", []string{"store_id", "timezone_str"}, ds.Timezones},
	}

	for _, f := range files {
		out, err := os.Create(filepath.Join(outDir, f.name))
		if err != nil {
			return err
		}
		w := csv.NewWriter(out)
		if err := w.Write(f.header); err != nil {
			out.Close()
			return err
		}
		if err := w.WriteAll(f.rows); err != nil {
			out.Close()
			return err
		}
		w.Flush()
		if err := out.Close(); err != nil {
			return err
		}
	}
	return nil
}
