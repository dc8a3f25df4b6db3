/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selector picks the next ready file for a category using play
// counts and the recency window for de-duplication and fairness.
package selector

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/history"
	"github.com/friendsincode/grimnir_station/internal/library"
	"github.com/friendsincode/grimnir_station/internal/station"
)

// Selector chooses tracks. Selection is deterministic given the pool and the
// history except for the final uniform pick among equally-good candidates,
// which exists to avoid a fixed, predictable rotation.
type Selector struct {
	lib         *library.Library
	hist        *history.Store
	historySize int
	rng         *rand.Rand
	logger      zerolog.Logger
}

// New creates a selector.
func New(lib *library.Library, hist *history.Store, historySize int, logger zerolog.Logger) *Selector {
	return &Selector{
		lib:         lib,
		hist:        hist,
		historySize: historySize,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      logger.With().Str("component", "selector").Logger(),
	}
}

type candidate struct {
	item     library.Item
	count    int
	distance int // slots from the newest end of the recency window; maxInt when absent
}

// PickNext selects the next file for a category. The second return is false
// when the category has no ready files at all — the caller skips the slot.
func (s *Selector) PickNext(cat station.Category) (*library.Item, bool) {
	items := s.lib.List(cat)
	if len(items) == 0 {
		s.logger.Warn().Str("category", cat.String()).Msg("no ready files for category")
		return nil, false
	}

	recent := s.hist.Recent(s.historySize)

	cands := make([]candidate, 0, len(items))
	for _, item := range items {
		cands = append(cands, candidate{
			item:     item,
			count:    s.hist.TotalPlayCount(item.RelPath),
			distance: recencyDistance(item.RelPath, recent),
		})
	}

	// Hard de-dup: drop everything currently in the recency window, across
	// all categories — a music track and a DJ clip share one no-repeat pool.
	available := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if c.distance == math.MaxInt {
			available = append(available, c)
		}
	}

	// Small pools exhaust the window; degrade to the least-recently-played
	// half of the full set rather than returning nothing.
	if len(available) == 0 {
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].distance > cands[j].distance
		})
		available = cands[:half(len(cands))]
	}

	// Never-played files win outright.
	final := make([]candidate, 0, len(available))
	for _, c := range available {
		if c.count == 0 {
			final = append(final, c)
		}
	}

	if len(final) == 0 {
		sort.SliceStable(available, func(i, j int) bool {
			if available[i].count != available[j].count {
				return available[i].count < available[j].count
			}
			return available[i].distance > available[j].distance
		})
		final = available[:half(len(available))]
	}

	choice := final[s.rng.Intn(len(final))]
	s.lib.Resolve(&choice.item)
	return &choice.item, true
}

// PickBlended draws uniformly from the union of several category pools. Used
// for dj slots when podcasts are folded into the talk rotation.
func (s *Selector) PickBlended(cats ...station.Category) (*library.Item, bool) {
	var pool []library.Item
	for _, cat := range cats {
		pool = append(pool, s.lib.List(cat)...)
	}
	if len(pool) == 0 {
		s.logger.Warn().Msg("no ready files in blended pool")
		return nil, false
	}
	choice := pool[s.rng.Intn(len(pool))]
	s.lib.Resolve(&choice)
	return &choice, true
}

func half(n int) int {
	h := n / 2
	if h < 1 {
		h = 1
	}
	return h
}

// recencyDistance returns how many entries back from the newest end of the
// window the path last appeared, or maxInt when it is not in the window.
func recencyDistance(relPath string, recent []history.Entry) int {
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].RelPath == relPath {
			return len(recent) - 1 - i
		}
	}
	return math.MaxInt
}
