/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"sync"
	"time"

	"github.com/friendsincode/grimnir_station/internal/library"
	"github.com/friendsincode/grimnir_station/internal/station"
)

// NowPlaying describes the item currently on air.
type NowPlaying struct {
	RelPath   string           `json:"relPath"`
	Category  station.Category `json:"category"`
	Meta      station.Metadata `json:"meta"`
	StartedAt time.Time        `json:"startedAt"`
}

// RunState holds the mutable state of a scheduler run: stop signals, the
// one-item lookahead cache and the now-playing snapshot. All access is
// mutex-guarded so signal handlers and the control API can poke it while the
// loop runs.
type RunState struct {
	mu           sync.Mutex
	stopNow      bool
	stopAfter    station.Category
	lookahead    *library.Item
	lookaheadCat station.Category
	nowPlaying   *NowPlaying
}

// NewRunState creates a fresh run state.
func NewRunState() *RunState {
	return &RunState{}
}

// RequestStop asks the run to halt at the next slot boundary. The in-flight
// delivery always completes.
func (rs *RunState) RequestStop() {
	rs.mu.Lock()
	rs.stopNow = true
	rs.mu.Unlock()
}

// RequestStopAfter asks the run to halt right after the next slot of the
// given category finishes delivering.
func (rs *RunState) RequestStopAfter(cat station.Category) {
	rs.mu.Lock()
	rs.stopAfter = cat
	rs.mu.Unlock()
}

func (rs *RunState) stopRequested() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.stopNow
}

func (rs *RunState) stopAfterCategory() (station.Category, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.stopAfter, rs.stopAfter != ""
}

// cacheLookahead stores the single reserved item. A previous cache entry is
// overwritten; the loop never holds more than one.
func (rs *RunState) cacheLookahead(item *library.Item, cat station.Category) {
	rs.mu.Lock()
	rs.lookahead = item
	rs.lookaheadCat = cat
	rs.mu.Unlock()
}

// takeLookahead consumes the cached item if it was reserved for cat.
func (rs *RunState) takeLookahead(cat station.Category) (*library.Item, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lookahead == nil || rs.lookaheadCat != cat {
		return nil, false
	}
	item := rs.lookahead
	rs.lookahead = nil
	rs.lookaheadCat = ""
	return item, true
}

func (rs *RunState) peekLookahead(cat station.Category) (*library.Item, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lookahead == nil || rs.lookaheadCat != cat {
		return nil, false
	}
	return rs.lookahead, true
}

func (rs *RunState) setNowPlaying(np *NowPlaying) {
	rs.mu.Lock()
	rs.nowPlaying = np
	rs.mu.Unlock()
}

// NowPlaying returns the current on-air snapshot, or false before the first
// delivery.
func (rs *RunState) NowPlaying() (NowPlaying, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.nowPlaying == nil {
		return NowPlaying{}, false
	}
	return *rs.nowPlaying, true
}
