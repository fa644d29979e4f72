package commands

import (
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"storewatch/internal/report"
	"storewatch/internal/server"
	"storewatch/internal/storage"
	"storewatch/internal/uptime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP report service",
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

		srv := server.New(cfg.ListenAddr, db, driver)
		if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info().Msg("Storewatch stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
