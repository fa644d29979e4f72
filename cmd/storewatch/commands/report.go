package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"storewatch/internal/report"
	"storewatch/internal/storage"
	"storewatch/internal/uptime"
)

var (
	reportOut   string
	reportTable bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate one report synchronously",
	Long: `Runs the full report pipeline against the local database and prints the CSV
payload (or writes it to --out). The run is recorded like any service-triggered
report; SIGINT cancels it and records the cancellation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		zones, err := uptime.NewZoneCache(cfg.DefaultTimezone)
		if err != nil {
			return err
		}

		driver := report.NewDriver(db, uptime.NewEstimator(db, zones), report.Options{
			Workers:      cfg.Workers,
			StoreTimeout: cfg.StoreTimeout,
		})

		reportID := uuid.NewString()
		if err := db.CreateReport(ctx, reportID, time.Now().UTC()); err != nil {
			return err
		}

		started := time.Now()
		rows, err := driver.Generate(ctx, reportID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warn().Str("report_id", reportID).Msg("Report cancelled")
				return nil
			}
			return err
		}
		log.Info().
			Str("report_id", reportID).
			Int("stores", len(rows)).
			Dur("elapsed", time.Since(started)).
			Msg("Report generated")

		if reportTable {
			report.RenderTable(os.Stdout, rows)
		}

		payload := report.RenderCSV(rows)
		if reportOut != "" {
			if err := os.WriteFile(reportOut, payload, 0644); err != nil {
				return fmt.Errorf("write %s: %w", reportOut, err)
			}
			log.Info().Str("path", reportOut).Msg("Payload written")
		} else if !reportTable {
			os.Stdout.Write(payload)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "", "write the CSV payload to this file instead of stdout")
	reportCmd.Flags().BoolVar(&reportTable, "table", false, "render the rows as a markdown table")
	rootCmd.AddCommand(reportCmd)
}
