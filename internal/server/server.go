/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the station's control API: health, now-playing,
// recent history, log tail and stop signals.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/history"
	"github.com/friendsincode/grimnir_station/internal/logbuffer"
	"github.com/friendsincode/grimnir_station/internal/scheduler"
	"github.com/friendsincode/grimnir_station/internal/station"
	"github.com/friendsincode/grimnir_station/internal/telemetry"
	"github.com/friendsincode/grimnir_station/internal/version"
)

// HistoryReader exposes the recency window to the API.
type HistoryReader interface {
	Recent(n int) []history.Entry
}

// Server is the control API HTTP server.
type Server struct {
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	state      *scheduler.RunState
	hist       HistoryReader
	logBuf     *logbuffer.Buffer
}

// New constructs the server and wires routes.
func New(addr string, state *scheduler.RunState, hist HistoryReader, logBuf *logbuffer.Buffer, logger zerolog.Logger) *Server {
	s := &Server{
		logger: logger.With().Str("component", "server").Logger(),
		router: chi.NewRouter(),
		state:  state,
		hist:   hist,
		logBuf: logBuf,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(telemetry.MetricsMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.configureRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/nowplaying", s.handleNowPlaying)
		r.Get("/history", s.handleHistory)
		r.Get("/logs", s.handleLogs)
		r.Post("/stop", s.handleStop)
	})
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	np, ok := s.state.NowPlaying()
	if !ok {
		writeError(w, http.StatusNotFound, "nothing_playing")
		return
	}
	writeJSON(w, http.StatusOK, np)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	entries := s.hist.Recent(limit)
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.logBuf.Tail(limit)})
}

type stopRequest struct {
	After string `json:"after"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
	}

	if req.After == "" {
		s.logger.Info().Msg("immediate stop requested via API")
		s.state.RequestStop()
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
		return
	}

	cat, err := station.ParseCategory(req.After)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}
	s.logger.Info().Str("after", req.After).Msg("graceful stop requested via API")
	s.state.RequestStopAfter(cat)
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping_after", "after": req.After})
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("control API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control API shutdown: %w", err)
	}
	return <-errCh
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
