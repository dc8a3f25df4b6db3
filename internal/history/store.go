/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history persists the station's play log and serves the bounded
// recency window that selection and transition planning read from.
package history

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/station"
)

// Entry is one completed play. The on-disk form is one JSON object per line;
// entries are never rewritten once appended.
type Entry struct {
	Timestamp time.Time        `json:"timestamp"`
	RelPath   string           `json:"relPath"`
	Category  station.Category `json:"type"`
	Meta      station.Metadata `json:"meta"`
}

// Store is a write-through cache over the append-only play log. The log is
// single-writer (the scheduler); readers hit the in-memory window.
type Store struct {
	logPath string
	limit   int
	logger  zerolog.Logger

	mu     sync.RWMutex
	recent []Entry // oldest → newest, at most limit entries
}

// Open creates a store and seeds the recency cache from the tail of the play
// log. A missing, empty, or unreadable log is not an error: the cache starts
// with a synthetic placeholder so fairness logic never sees an empty window.
func Open(logPath string, limit int, logger zerolog.Logger) *Store {
	if limit <= 0 {
		limit = 128
	}
	s := &Store{
		logPath: logPath,
		limit:   limit,
		logger:  logger.With().Str("component", "history").Logger(),
	}
	s.bootstrap()
	return s
}

func (s *Store) bootstrap() {
	entries, err := s.readAll()
	if err != nil {
		s.logger.Warn().Err(err).Msg("play log unreadable, starting with placeholder history")
	}
	if len(entries) > s.limit {
		entries = entries[len(entries)-s.limit:]
	}
	if len(entries) == 0 {
		entries = []Entry{placeholderEntry()}
		s.logger.Info().Msg("play log empty, seeded placeholder history entry")
	}
	s.recent = entries
}

func placeholderEntry() Entry {
	return Entry{
		Timestamp: time.Now(),
		RelPath:   "placeholder.mp3",
		Category:  station.CategoryPlaceholder,
		Meta: station.Metadata{
			Title:  "Placeholder Track",
			Artist: "Unknown Artist",
		},
	}
}

// Append records one completed play. The durable write may fail (disk full,
// permissions); that is logged and swallowed — the cache is updated either
// way and the run continues with an uncommitted record.
func (s *Store) Append(relPath string, cat station.Category, meta station.Metadata) {
	entry := Entry{
		Timestamp: time.Now(),
		RelPath:   relPath,
		Category:  cat,
		Meta:      meta,
	}

	if err := s.appendLine(entry); err != nil {
		s.logger.Error().Err(err).Str("rel_path", relPath).Msg("failed to append play log")
	}

	s.mu.Lock()
	s.recent = append(s.recent, entry)
	if len(s.recent) > s.limit {
		s.recent = s.recent[len(s.recent)-s.limit:]
	}
	s.mu.Unlock()
}

func (s *Store) appendLine(entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return err
	}
	return nil
}

// Recent returns up to n newest cache entries in oldest → newest order,
// filtered to entries with usable metadata.
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if len(s.recent) > n {
		start = len(s.recent) - n
	}
	out := make([]Entry, 0, len(s.recent)-start)
	for _, e := range s.recent[start:] {
		if e.Meta.Usable() {
			out = append(out, e)
		}
	}
	return out
}

// TotalPlayCount scans the durable log counting exact path matches. This is
// a full-file scan on purpose: it backs long-horizon fairness and only runs
// during selection, never in the playback hot path.
func (s *Store) TotalPlayCount(relPath string) int {
	f, err := os.Open(s.logPath)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue // corrupt line, skip
		}
		if e.RelPath == relPath {
			count++
		}
	}
	return count
}

func (s *Store) readAll() ([]Entry, error) {
	f, err := os.Open(s.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			s.logger.Debug().Str("line", string(scanner.Bytes())).Msg("skipping corrupt play log line")
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
