package uptime

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is the per-store report record. Last-hour figures are minutes,
// last-day and last-week figures are hours, all rounded half-to-even to two
// decimals. Warnings carry per-store diagnostics (no_polls, unknown_zone,
// parse_error, timeout, failed); they ride alongside the numbers and never
// change the CSV column set.
type Row struct {
	StoreID          string
	UptimeLastHour   decimal.Decimal
	UptimeLastDay    decimal.Decimal
	UptimeLastWeek   decimal.Decimal
	DowntimeLastHour decimal.Decimal
	DowntimeLastDay  decimal.Decimal
	DowntimeLastWeek decimal.Decimal
	Warnings         []string
}

// ZeroRow returns a row with all metrics at 0.00, used for stores whose
// estimation failed outright.
func ZeroRow(storeID string, warnings ...string) Row {
	zero := decimal.Zero.RoundBank(2)
	return Row{
		StoreID:          storeID,
		UptimeLastHour:   zero,
		UptimeLastDay:    zero,
		UptimeLastWeek:   zero,
		DowntimeLastHour: zero,
		DowntimeLastDay:  zero,
		DowntimeLastWeek: zero,
		Warnings:         warnings,
	}
}

// buildRow projects the three accumulated totals into reporting units.
func buildRow(storeID string, hour, day, week Totals, warnings []string) Row {
	return Row{
		StoreID:          storeID,
		UptimeLastHour:   minutesOf(hour.Uptime),
		UptimeLastDay:    hoursOf(day.Uptime),
		UptimeLastWeek:   hoursOf(week.Uptime),
		DowntimeLastHour: minutesOf(hour.Downtime),
		DowntimeLastDay:  hoursOf(day.Downtime),
		DowntimeLastWeek: hoursOf(week.Downtime),
		Warnings:         warnings,
	}
}

var (
	nanosPerMinute = decimal.New(int64(time.Minute), 0)
	nanosPerHour   = decimal.New(int64(time.Hour), 0)
)

// minutesOf converts an exact nanosecond duration to minutes, rounded
// half-to-even to two decimals. Division happens in decimal space so the
// only rounding step is the final one.
func minutesOf(d time.Duration) decimal.Decimal {
	return decimal.New(int64(d), 0).Div(nanosPerMinute).RoundBank(2)
}

// hoursOf converts an exact nanosecond duration to hours, rounded
// half-to-even to two decimals.
func hoursOf(d time.Duration) decimal.Decimal {
	return decimal.New(int64(d), 0).Div(nanosPerHour).RoundBank(2)
}
