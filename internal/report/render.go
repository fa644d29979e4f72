package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"storewatch/internal/uptime"
)

// csvHeader is the fixed payload header. The column set never changes, even
// for rows that carry warnings; diagnostics travel out of band.
var csvHeader = []string{
	"store_id",
	"uptime_last_hour", "uptime_last_day", "uptime_last_week",
	"downtime_last_hour", "downtime_last_day", "downtime_last_week",
}

// RenderCSV serializes rows into the report payload. Rows must already be
// sorted by store id; values are written with exactly two decimals and lines
// end with a bare \n so identical inputs yield identical payload bytes.
func RenderCSV(rows []uptime.Row) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(csvHeader, ","))
	buf.WriteByte('\n')
	for _, r := range rows {
		buf.WriteString(r.StoreID)
		for _, v := range rowValues(r) {
			buf.WriteByte(',')
			buf.WriteString(v)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// rowValues returns the six metric columns in header order.
func rowValues(r uptime.Row) []string {
	return []string{
		r.UptimeLastHour.StringFixed(2),
		r.UptimeLastDay.StringFixed(2),
		r.UptimeLastWeek.StringFixed(2),
		r.DowntimeLastHour.StringFixed(2),
		r.DowntimeLastDay.StringFixed(2),
		r.DowntimeLastWeek.StringFixed(2),
	}
}

// RenderTable writes rows as a markdown table for terminal consumption,
// followed by a colored summary line. Warnings get their own column here
// since the human-facing view has no out-of-band channel.
func RenderTable(w io.Writer, rows []uptime.Row) {
	headers := append(append([]string{}, csvHeader...), "warnings")
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)

	flagged := 0
	for _, r := range rows {
		if len(r.Warnings) > 0 {
			flagged++
		}
		row := append([]string{r.StoreID}, rowValues(r)...)
		row = append(row, strings.Join(r.Warnings, "; "))
		table.Append(row)
	}
	table.Render()

	fmt.Fprintf(w, "\n%s %d stores, %d flagged\n",
		color.New(color.FgGreen, color.Bold).Sprint("Report complete:"),
		len(rows), flagged)
}
