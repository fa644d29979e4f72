package report

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// TestReportPayloadGolden pins the exact payload bytes for a fixed fleet.
// Any change to window math, rounding, or CSV formatting shows up here.
func TestReportPayloadGolden(t *testing.T) {
	mem := fullWeekFixture(t)
	rows := generate(t, newTestDriver(t, mem), mem, "r-golden")
	actual := RenderCSV(rows)

	goldenPath := filepath.Join("testdata", "report_payload_golden.csv")

	if *update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			t.Fatalf("Failed to create testdata dir: %v", err)
		}
		if err := os.WriteFile(goldenPath, actual, 0644); err != nil {
			t.Fatalf("Failed to write golden file: %v", err)
		}
		t.Logf("Golden file updated at %s", goldenPath)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("Golden file not found at %s. Run tests with -update flag to generate it.", goldenPath)
		}
		t.Fatalf("Failed to read golden file: %v", err)
	}

	if !bytes.Equal(expected, actual) {
		tmpPath := goldenPath + ".actual"
		os.WriteFile(tmpPath, actual, 0644)
		t.Errorf("Payload differs from golden file; wrote actual output to %s. If the change was intentional, re-run with -update.", tmpPath)
	}
}
