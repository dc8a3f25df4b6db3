package selector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/history"
	"github.com/friendsincode/grimnir_station/internal/library"
	"github.com/friendsincode/grimnir_station/internal/station"
)

type fixture struct {
	sel  *Selector
	hist *history.Store
}

func newFixture(t *testing.T, historySize int, files map[station.Category][]string) fixture {
	t.Helper()
	root := t.TempDir()
	for cat, names := range files {
		for _, name := range names {
			path := filepath.Join(root, cat.String(), name)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
			if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		}
	}
	lib := library.New(root, zerolog.Nop())
	hist := history.Open(filepath.Join(t.TempDir(), "play.log"), 128, zerolog.Nop())
	return fixture{
		sel:  New(lib, hist, historySize, zerolog.Nop()),
		hist: hist,
	}
}

func (f fixture) play(t *testing.T, item *library.Item) {
	t.Helper()
	f.hist.Append(item.RelPath, item.Category, item.Meta)
}

func TestPickNextEmptyPoolReturnsNone(t *testing.T) {
	f := newFixture(t, 16, nil)
	if _, ok := f.sel.PickNext(station.CategoryMusic); ok {
		t.Fatal("expected no pick from empty pool")
	}
}

func TestNoImmediateRepeat(t *testing.T) {
	f := newFixture(t, 16, map[station.Category][]string{
		station.CategoryMusic: {"a.mp3", "b.mp3"},
	})

	// Whatever is picked and played must not come back while the other file
	// is still untouched, for any seed.
	for round := 0; round < 20; round++ {
		first, ok := f.sel.PickNext(station.CategoryMusic)
		if !ok {
			t.Fatal("expected a pick")
		}
		f.play(t, first)

		second, ok := f.sel.PickNext(station.CategoryMusic)
		if !ok {
			t.Fatal("expected a pick")
		}
		if second.RelPath == first.RelPath {
			t.Fatalf("round %d: immediate repeat of %q", round, first.RelPath)
		}
		f.play(t, second)
	}
}

func TestCrossCategoryDeduplication(t *testing.T) {
	f := newFixture(t, 16, map[station.Category][]string{
		station.CategoryMusic: {"a.mp3", "b.mp3"},
		station.CategoryDJ:    {"a.mp3", "talk.mp3"},
	})

	// Playing dj/a.mp3 must not block music/a.mp3: de-dup is by relative
	// path, and these are distinct files.
	dj, ok := f.sel.PickNext(station.CategoryDJ)
	if !ok {
		t.Fatal("expected dj pick")
	}
	f.play(t, dj)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		m, ok := f.sel.PickNext(station.CategoryMusic)
		if !ok {
			t.Fatal("expected music pick")
		}
		seen[m.RelPath] = true
	}
	if !seen["music/a.mp3"] && !seen["music/b.mp3"] {
		t.Fatal("music picks missing entirely")
	}
}

func TestExhaustionFallback(t *testing.T) {
	f := newFixture(t, 10, map[station.Category][]string{
		station.CategoryMusic: {"a.mp3", "b.mp3", "c.mp3"},
	})

	picked := map[string]bool{}
	for i := 0; i < 3; i++ {
		item, ok := f.sel.PickNext(station.CategoryMusic)
		if !ok {
			t.Fatalf("pick %d: expected a track", i)
		}
		if picked[item.RelPath] {
			t.Fatalf("pick %d: %q repeated before pool exhausted", i, item.RelPath)
		}
		picked[item.RelPath] = true
		f.play(t, item)
	}

	// All three are now in the window; selection must degrade to the
	// least-recently-played half rather than fail.
	item, ok := f.sel.PickNext(station.CategoryMusic)
	if !ok {
		t.Fatal("expected fallback pick, got none")
	}
	if !picked[item.RelPath] {
		t.Fatalf("fallback returned unknown path %q", item.RelPath)
	}
}

func TestNeverPlayedPreferred(t *testing.T) {
	f := newFixture(t, 2, map[station.Category][]string{
		station.CategoryMusic: {"old.mp3", "fresh.mp3"},
	})

	// Push "old" well beyond the recency window but into the durable log.
	for i := 0; i < 5; i++ {
		f.hist.Append("music/old.mp3", station.CategoryMusic, station.Metadata{Title: "Old"})
	}
	f.hist.Append("filler/one.mp3", station.CategoryMusic, station.Metadata{Title: "F1"})
	f.hist.Append("filler/two.mp3", station.CategoryMusic, station.Metadata{Title: "F2"})

	for i := 0; i < 10; i++ {
		item, ok := f.sel.PickNext(station.CategoryMusic)
		if !ok {
			t.Fatal("expected a pick")
		}
		if item.RelPath != "music/fresh.mp3" {
			t.Fatalf("expected never-played file, got %q", item.RelPath)
		}
	}
}

func TestPickBlendedDrawsFromUnion(t *testing.T) {
	f := newFixture(t, 16, map[station.Category][]string{
		station.CategoryDJ:      {"talk.mp3"},
		station.CategoryPodcast: {"show.mp3"},
	})

	seen := map[station.Category]bool{}
	for i := 0; i < 40; i++ {
		item, ok := f.sel.PickBlended(station.CategoryDJ, station.CategoryPodcast)
		if !ok {
			t.Fatal("expected blended pick")
		}
		seen[item.Category] = true
	}
	if !seen[station.CategoryDJ] || !seen[station.CategoryPodcast] {
		t.Fatalf("blended picks did not cover both pools: %v", seen)
	}
}
