/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library enumerates the per-category ready directories that
// out-of-scope content producers deposit finished audio into.
package library

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/station"
)

// Item is a discoverable audio file under a category-scoped ready directory.
// Meta is filled lazily by Resolve; enumeration never reads file contents.
type Item struct {
	Path     string // absolute path
	RelPath  string // path relative to the ready root, stable across runs
	Category station.Category
	Meta     station.Metadata
}

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".flac": {},
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// Library reads the ready tree. Producers write it concurrently; a file
// vanishing mid-enumeration is an ordinary not-found, never an error.
type Library struct {
	root   string
	logger zerolog.Logger
}

// New creates a library over the ready root.
func New(root string, logger zerolog.Logger) *Library {
	return &Library{
		root:   root,
		logger: logger.With().Str("component", "library").Logger(),
	}
}

// List enumerates the playable files for a category. A missing directory or
// an empty pool yields an empty slice, not an error.
func (l *Library) List(cat station.Category) []Item {
	dir := filepath.Join(l.root, cat.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn().Err(err).Str("dir", dir).Msg("ready directory unreadable")
		}
		return nil
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := audioExtensions[ext]; !ok {
			continue
		}
		abs := filepath.Join(dir, entry.Name())
		items = append(items, Item{
			Path:     abs,
			RelPath:  filepath.ToSlash(filepath.Join(cat.String(), entry.Name())),
			Category: cat,
		})
	}
	return items
}

// Resolve fills in the item's metadata from its embedded tags, falling back
// to a filename-derived title when tags are absent or the file is unreadable.
func (l *Library) Resolve(item *Item) {
	item.Meta = l.extract(item.Path)
}

func (l *Library) extract(path string) station.Metadata {
	fallback := station.Metadata{
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Filename: filepath.Base(path),
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		l.logger.Warn().Str("path", path).Msg("file missing or empty, using filename metadata")
		return fallback
	}

	f, err := os.Open(path)
	if err != nil {
		l.logger.Warn().Err(err).Str("path", path).Msg("cannot open file for tag read")
		return fallback
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		l.logger.Debug().Err(err).Str("path", path).Msg("no embedded tags, using filename metadata")
		return fallback
	}

	out := fallback
	if t := meta.Title(); t != "" {
		out.Title = t
	}
	out.Artist = meta.Artist()
	out.Album = meta.Album()
	out.Genre = meta.Genre()
	out.Comment = meta.Comment()
	return out
}

// TransitionDir returns the directory transient transition clips live in.
func (l *Library) TransitionDir() string {
	return filepath.Join(l.root, station.CategoryTransition.String())
}

// CleanupTransitions removes leftover transition clips from an earlier run.
// Transitions are one-off; anything still on disk at startup is stale.
func (l *Library) CleanupTransitions() {
	dir := l.TransitionDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "segway_") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			l.logger.Warn().Err(err).Str("file", name).Msg("failed to remove stale transition clip")
			continue
		}
		removed++
	}
	if removed > 0 {
		l.logger.Info().Int("count", removed).Msg("cleaned up stale transition clips")
	}
}

// RandomCoverImage picks a cover for the live broadcast overlay from the
// image ready directory.
func (l *Library) RandomCoverImage() (string, error) {
	dir := filepath.Join(l.root, "image")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read image directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; ok {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	if len(images) == 0 {
		return "", fmt.Errorf("no cover images in %s", dir)
	}
	return images[rand.Intn(len(images))], nil
}
