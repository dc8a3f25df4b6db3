/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler runs the station's playback loop: a fixed pattern of
// category slots, walked cycle after cycle, with one-item lookahead so
// transition clips can reference the upcoming track.
package scheduler

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/config"
	"github.com/friendsincode/grimnir_station/internal/delivery"
	"github.com/friendsincode/grimnir_station/internal/events"
	"github.com/friendsincode/grimnir_station/internal/history"
	"github.com/friendsincode/grimnir_station/internal/library"
	"github.com/friendsincode/grimnir_station/internal/station"
	"github.com/friendsincode/grimnir_station/internal/telemetry"
	"github.com/friendsincode/grimnir_station/internal/transition"
)

// Selector picks the next item to play for a category.
type Selector interface {
	PickNext(cat station.Category) (*library.Item, bool)
	PickBlended(cats ...station.Category) (*library.Item, bool)
}

// Planner maps a playback boundary to transition text.
type Planner interface {
	Plan(ctx context.Context, prev, next transition.Endpoint) string
}

// ClipWriter renders transition text to a playable file.
type ClipWriter interface {
	Write(ctx context.Context, text string) (string, error)
}

// History records plays and exposes the recency window.
type History interface {
	Append(relPath string, cat station.Category, meta station.Metadata)
	Recent(n int) []history.Entry
}

// Options configures a scheduler run.
type Options struct {
	Pattern         []station.Category
	HistorySize     int
	Weights         map[station.Category]float64
	UptimeBudget    time.Duration
	UptimeMode      config.UptimeMode
	IncludePodcasts bool
}

// Scheduler owns the playback loop.
type Scheduler struct {
	opts    Options
	sel     Selector
	planner Planner
	clips   ClipWriter
	hist    History
	sink    delivery.Sink
	bus     *events.Bus
	state   *RunState
	logger  zerolog.Logger
}

// New creates a scheduler.
func New(opts Options, sel Selector, planner Planner, clips ClipWriter, hist History, sink delivery.Sink, bus *events.Bus, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		opts:    opts,
		sel:     sel,
		planner: planner,
		clips:   clips,
		hist:    hist,
		sink:    sink,
		bus:     bus,
		state:   NewRunState(),
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// State exposes the run state for stop signals and now-playing queries.
func (s *Scheduler) State() *RunState {
	return s.state
}

// Run walks the pattern until a stop request, uptime cutoff or fatal delivery
// failure. It returns nil on a clean stop; the only error it surfaces is a
// dead live pipeline.
func (s *Scheduler) Run(ctx context.Context) error {
	start := time.Now()
	s.logger.Info().
		Interface("pattern", s.opts.Pattern).
		Dur("uptime_budget", s.opts.UptimeBudget).
		Str("uptime_mode", string(s.opts.UptimeMode)).
		Msg("playback loop starting")

	defer s.bus.Publish(events.EventStopping, events.Payload{"at": time.Now()})

	for {
		if s.state.stopRequested() || ctx.Err() != nil {
			return nil
		}

		if s.overBudget(start) && s.opts.UptimeMode == config.UptimeCycle {
			s.logger.Info().Dur("elapsed", time.Since(start)).Msg("uptime budget reached, ending at cycle boundary")
			return nil
		}

		s.logger.Debug().Msg("starting cycle")
		for i, cat := range s.opts.Pattern {
			if s.state.stopRequested() || ctx.Err() != nil {
				return nil
			}
			// Track mode arms the stop-after flag as soon as the budget runs
			// out, even mid-cycle.
			if s.opts.UptimeMode == config.UptimeTrack && s.overBudget(start) {
				if _, set := s.state.stopAfterCategory(); !set {
					s.logger.Info().Dur("elapsed", time.Since(start)).Msg("uptime budget reached, stopping after next music track")
					s.state.RequestStopAfter(station.CategoryMusic)
				}
			}

			if cat.IsTransition() {
				if err := s.runTransitionSlot(ctx, i); err != nil {
					return err
				}
				continue
			}

			stopped, err := s.runContentSlot(ctx, cat)
			if err != nil {
				return err
			}
			if stopped {
				return nil
			}
		}
	}
}

func (s *Scheduler) overBudget(start time.Time) bool {
	return s.opts.UptimeBudget > 0 && time.Since(start) >= s.opts.UptimeBudget
}

// nextContentCategory finds the category of the next non-transition slot
// after index i, or false if the pattern ends in transitions.
func (s *Scheduler) nextContentCategory(i int) (station.Category, bool) {
	for j := i + 1; j < len(s.opts.Pattern); j++ {
		if !s.opts.Pattern[j].IsTransition() {
			return s.opts.Pattern[j], true
		}
	}
	return "", false
}

func (s *Scheduler) runTransitionSlot(ctx context.Context, i int) error {
	nextCat, ok := s.nextContentCategory(i)
	if !ok {
		return nil
	}

	// One-track lookahead: reserve the item for the upcoming content slot so
	// the transition can name it.
	next, cached := s.state.peekLookahead(nextCat)
	if !cached {
		item, ok := s.pick(nextCat)
		if !ok {
			telemetry.SelectorEmptyTotal.WithLabelValues(string(nextCat)).Inc()
			s.logger.Warn().Str("category", string(nextCat)).Msg("no lookahead item, skipping transition")
			return nil
		}
		s.state.cacheLookahead(item, nextCat)
		next = item
	}
	if !next.Meta.Usable() {
		s.logger.Warn().Str("category", string(nextCat)).Msg("lookahead item has no usable metadata, skipping transition")
		return nil
	}

	prev := s.referencePrevious()
	text := s.planner.Plan(ctx, prev, transition.Endpoint{Category: nextCat, Meta: next.Meta})
	if strings.TrimSpace(text) == "" {
		telemetry.TransitionsTotal.WithLabelValues("silent").Inc()
		s.logger.Debug().
			Str("prev", string(prev.Category)).
			Str("next", string(nextCat)).
			Msg("silent boundary, skipping transition slot")
		return nil
	}

	clipPath, err := s.clips.Write(ctx, text)
	if err != nil {
		telemetry.TransitionsTotal.WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Msg("transition synthesis failed, skipping slot")
		return nil
	}
	defer func() {
		if err := os.Remove(clipPath); err != nil {
			s.logger.Warn().Err(err).Str("path", clipPath).Msg("failed to remove transition clip")
		}
	}()

	if err := s.sink.Play(ctx, clipPath); err != nil {
		if errors.Is(err, delivery.ErrPipelineDown) {
			return err
		}
		telemetry.DeliveryFailuresTotal.Inc()
		telemetry.TransitionsTotal.WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Str("path", clipPath).Msg("transition delivery failed")
		return nil
	}

	telemetry.TransitionsTotal.WithLabelValues("delivered").Inc()
	s.bus.Publish(events.EventTransition, events.Payload{
		"text": text,
		"prev": string(prev.Category),
		"next": string(nextCat),
	})
	return nil
}

func (s *Scheduler) runContentSlot(ctx context.Context, cat station.Category) (bool, error) {
	item, ok := s.state.takeLookahead(cat)
	if !ok {
		item, ok = s.pick(cat)
	}
	if !ok {
		telemetry.SelectorEmptyTotal.WithLabelValues(string(cat)).Inc()
		s.logger.Warn().Str("category", string(cat)).Msg("no item available, skipping slot")
		return false, nil
	}

	if err := s.sink.Play(ctx, item.Path); err != nil {
		if errors.Is(err, delivery.ErrPipelineDown) {
			return false, err
		}
		telemetry.DeliveryFailuresTotal.Inc()
		s.logger.Error().Err(err).
			Str("category", string(cat)).
			Str("path", item.Path).
			Msg("delivery failed, skipping slot")
		return false, nil
	}

	s.hist.Append(item.RelPath, item.Category, item.Meta)
	telemetry.PlaysTotal.WithLabelValues(string(item.Category)).Inc()

	np := &NowPlaying{
		RelPath:   item.RelPath,
		Category:  item.Category,
		Meta:      item.Meta,
		StartedAt: time.Now(),
	}
	s.state.setNowPlaying(np)
	s.bus.Publish(events.EventNowPlaying, events.Payload{
		"relPath":  np.RelPath,
		"category": string(np.Category),
		"title":    np.Meta.Title,
		"artist":   np.Meta.Artist,
	})

	if after, set := s.state.stopAfterCategory(); set && cat == after {
		s.logger.Info().Str("category", string(cat)).Msg("stop-after category delivered, halting")
		s.state.RequestStop()
		return true, nil
	}
	return false, nil
}

// pick selects an item for a content slot. DJ slots optionally blend in the
// podcast pool.
func (s *Scheduler) pick(cat station.Category) (*library.Item, bool) {
	if cat == station.CategoryDJ && s.opts.IncludePodcasts {
		return s.sel.PickBlended(station.CategoryDJ, station.CategoryPodcast)
	}
	return s.sel.PickNext(cat)
}

// referencePrevious scans the recency window backward for the item a
// transition should talk about: the most recent weighted music entry, falling
// back to any weighted entry. Zero-weight categories and the placeholder are
// never referenced, so transitions skip over jingles and filler.
func (s *Scheduler) referencePrevious() transition.Endpoint {
	recent := s.hist.Recent(s.opts.HistorySize)

	weighted := func(e history.Entry) bool {
		return s.opts.Weights[e.Category] > 0 && e.Meta.Title != "Placeholder Track"
	}

	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Category == station.CategoryMusic && weighted(recent[i]) {
			return transition.Endpoint{Category: recent[i].Category, Meta: recent[i].Meta}
		}
	}
	for _, e := range recent {
		if weighted(e) {
			return transition.Endpoint{Category: e.Category, Meta: e.Meta}
		}
	}
	return transition.Endpoint{Category: station.CategoryStart}
}
