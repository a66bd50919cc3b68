// Package localapi exposes the punch controller to a UI shell over a
// localhost HTTP API.
package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fieldops.dev/punchclock/punch"
	"fieldops.dev/punchclock/punch/models"
	"github.com/go-chi/chi/v5"
)

type Controller interface {
	Snapshot() punch.Snapshot
	TogglePunch(ctx context.Context) error
	Subscribe() chan struct{}
	Unsubscribe(ch chan struct{})
}

type DutySource interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

type Server struct {
	c    Controller
	duty DutySource
	l    *slog.Logger

	keepalive time.Duration
}

func New(c Controller, duty DutySource, l *slog.Logger) *Server {
	return &Server{
		c:         c,
		duty:      duty,
		l:         l,
		keepalive: 30 * time.Second,
	}
}

func (s *Server) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(s.RequestLogger)

	mux.Get("/state", s.State)
	mux.Post("/punch", s.Punch)
	mux.HandleFunc("/events", s.Events)
	mux.Get("/duty/today", s.TodayDuty)
	return mux
}

// Serve listens on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.l.Info("starting local api", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	State   *punch.Snapshot `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.c.Snapshot(), http.StatusOK)
}

func (s *Server) Punch(w http.ResponseWriter, r *http.Request) {
	l := s.l.With("handler", "Punch")

	// once started, an attempt runs to completion even if the UI hangs up
	err := s.c.TogglePunch(context.WithoutCancel(r.Context()))
	snap := s.c.Snapshot()

	switch {
	case err == nil:
		writeJSON(w, snap, http.StatusOK)
	case errors.Is(err, punch.ErrBusy):
		writeJSON(w, errorResponse{
			Error:   "busy",
			Message: "A punch is already in progress.",
			State:   &snap,
		}, http.StatusConflict)
	default:
		l.Info("punch attempt failed", "err", err)
		writeJSON(w, errorResponse{
			Error:   punch.Attempt{Err: err}.FailureKind(),
			Message: models.UserMessage(err),
			State:   &snap,
		}, http.StatusUnprocessableEntity)
	}
}

type dutyResponse struct {
	Assigned bool         `json:"assigned"`
	Duty     *models.Duty `json:"duty,omitempty"`
	Message  string       `json:"message,omitempty"`
}

func (s *Server) TodayDuty(w http.ResponseWriter, r *http.Request) {
	stats, err := s.duty.Stats(r.Context())
	if err != nil {
		s.l.Error("failed to fetch stats", "err", err)
		writeJSON(w, errorResponse{
			Error:   "upstream",
			Message: models.UserMessage(err),
		}, http.StatusBadGateway)
		return
	}

	if !stats.TodayDuty.Assigned() {
		writeJSON(w, dutyResponse{Message: models.NoDutyMessage}, http.StatusOK)
		return
	}
	writeJSON(w, dutyResponse{Assigned: true, Duty: stats.TodayDuty}, http.StatusOK)
}
