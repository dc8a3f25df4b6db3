package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_station/internal/station"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "station.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

const minimalProfile = `
station_name: Test FM
dj_name: Tester
schedule:
  pattern: [music, segway, dj, segway, music]
history:
  size: 8
  weights:
    music: 1.0
    dj: 0.5
`

func TestLoadReadsProfileAndEnv(t *testing.T) {
	t.Setenv("GRIMNIR_STATION_PROFILE", writeProfile(t, minimalProfile))
	t.Setenv("GRIMNIR_STATION_READY_ROOT", "/srv/ready")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Profile.StationName != "Test FM" {
		t.Fatalf("unexpected station name: %q", cfg.Profile.StationName)
	}
	if len(cfg.Pattern) != 5 || cfg.Pattern[1] != station.CategoryTransition {
		t.Fatalf("unexpected pattern: %v", cfg.Pattern)
	}
	if cfg.HistorySize != 8 {
		t.Fatalf("unexpected history size: %d", cfg.HistorySize)
	}
	if got := cfg.ReadyDir(station.CategoryMusic); got != "/srv/ready/music" {
		t.Fatalf("unexpected ready dir: %q", got)
	}
}

func TestLoadRejectsUnknownPatternCategory(t *testing.T) {
	t.Setenv("GRIMNIR_STATION_PROFILE", writeProfile(t, `
schedule:
  pattern: [music, jingle]
`))

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail on unknown category")
	}
}

func TestLoadClampsWeightsAndFunnyRate(t *testing.T) {
	t.Setenv("GRIMNIR_STATION_PROFILE", writeProfile(t, `
schedule:
  pattern: [music]
history:
  weights:
    music: -3.5
transitions:
  funny_rate: 2.0
`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if w := cfg.Weights[station.CategoryMusic]; w != 0 {
		t.Fatalf("expected negative weight clamped to 0, got %v", w)
	}
	if cfg.Profile.Transitions.FunnyRate != 1 {
		t.Fatalf("expected funny rate clamped to 1, got %v", cfg.Profile.Transitions.FunnyRate)
	}
}

func TestLoadRequiresStreamKeyInLiveMode(t *testing.T) {
	t.Setenv("GRIMNIR_STATION_PROFILE", writeProfile(t, minimalProfile))
	t.Setenv("GRIMNIR_STATION_DELIVERY_MODE", "live")

	if _, err := Load(); err == nil {
		t.Fatal("expected live mode without stream key to fail")
	}

	t.Setenv("GRIMNIR_STATION_STREAM_KEY", "abcd-1234")
	if _, err := Load(); err != nil {
		t.Fatalf("expected live mode with stream key to load: %v", err)
	}
}

func TestUptimeBudgetAndOverride(t *testing.T) {
	t.Setenv("GRIMNIR_STATION_PROFILE", writeProfile(t, minimalProfile+`
uptime:
  hours: 2
  mode: cycle
`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptimeBudget != 2*time.Hour || cfg.UptimeMode != UptimeCycle {
		t.Fatalf("unexpected uptime: %v %q", cfg.UptimeBudget, cfg.UptimeMode)
	}

	if err := cfg.ApplyUptimeOverride(0.5, "track"); err != nil {
		t.Fatalf("apply override: %v", err)
	}
	if cfg.UptimeBudget != 30*time.Minute || cfg.UptimeMode != UptimeTrack {
		t.Fatalf("override not applied: %v %q", cfg.UptimeBudget, cfg.UptimeMode)
	}

	if err := cfg.ApplyUptimeOverride(-1, "bogus"); err == nil {
		t.Fatal("expected bogus uptime mode to fail")
	}
}
