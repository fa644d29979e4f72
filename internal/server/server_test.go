package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storewatch/internal/report"
	"storewatch/internal/storage"
	"storewatch/internal/uptime"
)

func newTestServer(t *testing.T) (*Server, *storage.MemStore, *report.Driver) {
	t.Helper()
	mem := storage.NewMemStore()
	mem.SetTimezone("s1", "UTC")
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= 7*24; i++ {
		if err := mem.AddPoll("s1", storage.StatusActive, base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339)); err != nil {
			t.Fatalf("AddPoll: %v", err)
		}
	}

	zones, err := uptime.NewZoneCache("America/Chicago")
	if err != nil {
		t.Fatalf("NewZoneCache: %v", err)
	}
	driver := report.NewDriver(mem, uptime.NewEstimator(mem, zones), report.Options{
		Workers:      2,
		StoreTimeout: 10 * time.Second,
	})
	return New(":0", mem, driver), mem, driver
}

func doJSON(t *testing.T, h http.Handler, method, path string, wantCode int) map[string]string {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("%s %s = %d, want %d (body: %s)", method, path, rec.Code, wantCode, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestReportLifecycleOverHTTP(t *testing.T) {
	srv, _, driver := newTestServer(t)
	h := srv.Handler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)

	body := doJSON(t, h, http.MethodPost, "/trigger-report", http.StatusAccepted)
	reportID := body["report_id"]
	if reportID == "" {
		t.Fatal("trigger returned no report_id")
	}

	// Poll the status endpoint until the report completes.
	deadline := time.After(5 * time.Second)
	for {
		body = doJSON(t, h, http.MethodGet, "/get-report/"+reportID+"?format=json", http.StatusOK)
		if body["status"] == storage.ReportComplete {
			break
		}
		if body["status"] != storage.ReportRunning {
			t.Fatalf("unexpected status %q", body["status"])
		}
		select {
		case <-deadline:
			t.Fatal("report never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !strings.HasPrefix(body["data"], "store_id,") {
		t.Errorf("json data does not carry the CSV payload: %q", body["data"])
	}

	// The default format is a CSV attachment.
	req := httptest.NewRequest(http.MethodGet, "/get-report/"+reportID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv download = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "report_"+reportID+".csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "s1,60.00,24.00,168.00,0.00,0.00,0.00") {
		t.Errorf("payload missing expected row:\n%s", rec.Body.String())
	}
}

func TestGetUnknownReport(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body := doJSON(t, srv.Handler(), http.MethodGet, "/get-report/no-such-id", http.StatusNotFound)
	if body["detail"] != "Report ID not found." {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestCancelReport(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	h := srv.Handler()

	// No queue consumer is running, so the report stays queued until cancelled.
	body := doJSON(t, h, http.MethodPost, "/trigger-report", http.StatusAccepted)
	reportID := body["report_id"]

	body = doJSON(t, h, http.MethodDelete, "/get-report/"+reportID, http.StatusOK)
	if body["reason"] != "cancelled" {
		t.Errorf("cancel reason = %q", body["reason"])
	}

	rec, err := mem.Report(context.Background(), reportID)
	if err != nil || rec == nil {
		t.Fatalf("Report lookup: %v, %v", rec, err)
	}
	if rec.Status != storage.ReportFailed || rec.Reason != "cancelled" {
		t.Errorf("record = %q/%q, want Failed/cancelled", rec.Status, rec.Reason)
	}

	body = doJSON(t, h, http.MethodGet, "/get-report/"+reportID, http.StatusOK)
	if body["status"] != storage.ReportFailed || body["reason"] != "cancelled" {
		t.Errorf("status body = %v", body)
	}

	// Cancelling a finished report is a conflict, an unknown one a 404.
	doJSON(t, h, http.MethodDelete, "/get-report/"+reportID, http.StatusConflict)
	doJSON(t, h, http.MethodDelete, "/get-report/no-such-id", http.StatusNotFound)
}
