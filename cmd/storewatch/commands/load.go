package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"storewatch/internal/loader"
	"storewatch/internal/storage"
)

var loadDir string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Ingest the CSV feed files into the local database",
	Long: `Reads store_status.csv, business_hours.csv, and timezones.csv from the data
directory and writes them into the local database. Malformed rows are skipped
and counted; re-running a load is safe, duplicates keep the first write.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := loadDir
		if dir == "" {
			dir = cfg.DataPath
		}

		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := loader.Load(cmd.Context(), db, dir)
		if err != nil {
			return err
		}

		log.Info().
			Int("polls", stats.Polls.Stored).
			Int("hours", stats.Hours).
			Int("timezones", stats.Timezones).
			Msg("Load complete")
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadDir, "data", "", "directory holding the feed CSV files (default: the configured data path)")
	rootCmd.AddCommand(loadCmd)
}
