package main

import (
	"flag"
	"fmt"
	"os"

	"storewatch/cmd/seedgen/engine"
)

func main() {
	scenario := flag.String("scenario", "steady", "Scenario to generate: steady, flaky, night-owl")
	stores := flag.Int("stores", 50, "Number of stores to generate")
	days := flag.Int("days", 7, "Days of poll history")
	seed := flag.Int64("seed", 42, "PRNG seed for reproducible datasets")
	outDir := flag.String("out", "./testdata", "Output directory for the feed CSV files")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Stores:   *stores,
		Days:     *days,
		Seed:     *seed,
	}

	fmt.Printf("Generating scenario '%s' (stores: %d, days: %d, seed: %d) to %s...\n",
		cfg.Scenario, cfg.Stores, cfg.Days, cfg.Seed, *outDir)

	ds := engine.Generate(cfg)
	if err := engine.Save(*outDir, ds); err != nil {
		fmt.Printf("Failed to save seed data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done: %d polls, %d schedule rows, %d timezone rows.\n",
		len(ds.Polls), len(ds.Hours), len(ds.Timezones))
}
