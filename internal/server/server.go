package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storewatch/internal/report"
	"storewatch/internal/storage"
)

// Server exposes the report lifecycle over HTTP: trigger, poll/download,
// cancel. All report math happens in the driver; the server only translates
// between HTTP and the report records.
type Server struct {
	addr   string
	store  storage.Store
	driver *report.Driver
	router *mux.Router
	log    zerolog.Logger
}

// New wires the routes onto a fresh server.
func New(addr string, store storage.Store, driver *report.Driver) *Server {
	s := &Server{
		addr:   addr,
		store:  store,
		driver: driver,
		router: mux.NewRouter(),
		log:    log.With().Str("component", "http").Logger(),
	}

	s.router.HandleFunc("/trigger-report", s.handleTrigger).Methods(http.MethodPost)
	s.router.HandleFunc("/get-report/{report_id}", s.handleGet).Methods(http.MethodGet)
	s.router.HandleFunc("/get-report/{report_id}", s.handleCancel).Methods(http.MethodDelete)
	s.router.Use(s.logRequests)

	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then drains in-flight requests. The report
// driver's queue consumer runs alongside the listener and shares its
// lifetime.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		if err := s.driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("Report driver stopped")
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	reportID, err := s.driver.Trigger(r.Context())
	if err != nil {
		if errors.Is(err, report.ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "Report queue is full, retry later."})
			return
		}
		s.log.Error().Err(err).Msg("Trigger failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"report_id": reportID})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	rec, err := s.store.Report(r.Context(), reportID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Report ID not found."})
		return
	}

	switch rec.Status {
	case storage.ReportRunning:
		writeJSON(w, http.StatusOK, map[string]string{"status": storage.ReportRunning})
	case storage.ReportFailed:
		writeJSON(w, http.StatusOK, map[string]string{"status": storage.ReportFailed, "reason": rec.Reason})
	case storage.ReportComplete:
		if r.URL.Query().Get("format") == "json" {
			writeJSON(w, http.StatusOK, map[string]string{"status": storage.ReportComplete, "data": string(rec.Payload)})
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report_%s.csv", reportID))
		w.WriteHeader(http.StatusOK)
		w.Write(rec.Payload)
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "unexpected report state " + rec.Status})
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	rec, err := s.store.Report(r.Context(), reportID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Report ID not found."})
		return
	}

	if err := s.driver.Cancel(r.Context(), reportID); err != nil {
		if errors.Is(err, storage.ErrReportFinal) {
			writeJSON(w, http.StatusConflict, map[string]string{"detail": "Report already finished."})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": storage.ReportFailed, "reason": "cancelled"})
}

// logRequests is the access-log middleware.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("Request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response body")
	}
}
