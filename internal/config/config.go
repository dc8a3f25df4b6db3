/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_station/internal/station"
)

// DeliveryMode selects where decoded audio goes for the whole run.
type DeliveryMode string

const (
	DeliveryLocal DeliveryMode = "local"
	DeliveryLive  DeliveryMode = "live"
)

// UptimeMode controls what happens when the runtime budget is exceeded.
type UptimeMode string

const (
	UptimeNone  UptimeMode = ""      // run until stopped
	UptimeCycle UptimeMode = "cycle" // finish the current cycle, then stop
	UptimeTrack UptimeMode = "track" // stop after the next music track
)

// Config covers process level configuration read from environment variables,
// plus the station profile loaded from YAML.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	ReadyRoot   string // root of the per-category ready directories
	HistoryLog  string // append-only play log path
	ProfilePath string // station profile YAML

	DeliveryMode DeliveryMode
	FFmpegBin    string
	FIFOPath     string // named pipe between Stage A and Stage B
	RTMPURL      string
	StreamKey    string

	// Optional Redis relay for now-playing events. Empty addr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	// External generation collaborator (OpenAI-compatible chat completions).
	GenerationURL    string
	GenerationModel  string
	GenerationAPIKey string

	// External speech synthesis collaborator.
	SpeechURL    string
	SpeechAPIKey string
	SpeechVoice  string

	Profile Profile

	// Derived from the profile at load time.
	Pattern      []station.Category
	HistorySize  int
	Weights      map[station.Category]float64
	UptimeBudget time.Duration
	UptimeMode   UptimeMode
}

// Profile is the content-shaped configuration of a station: who it is, what
// it plays, and how it talks between tracks.
type Profile struct {
	StationName string `yaml:"station_name"`
	DJName      string `yaml:"dj_name"`
	Vibe        string `yaml:"vibe"`
	Context     string `yaml:"context"`

	Schedule struct {
		Pattern []string `yaml:"pattern"`
	} `yaml:"schedule"`

	History struct {
		Size    int                `yaml:"size"`
		Weights map[string]float64 `yaml:"weights"`
	} `yaml:"history"`

	Uptime struct {
		Hours float64 `yaml:"hours"`
		Mode  string  `yaml:"mode"`
	} `yaml:"uptime"`

	Transitions struct {
		Prompt          string  `yaml:"prompt"`
		FunnyPrompt     string  `yaml:"funny_prompt"`
		FunnyRate       float64 `yaml:"funny_rate"`
		Voice           string  `yaml:"voice"`
		IncludePodcasts bool    `yaml:"include_podcasts"`
	} `yaml:"transitions"`
}

const (
	defaultHistorySize = 16
	maxHistorySize     = 128
)

// Load reads environment variables and the station profile, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("GRIMNIR_STATION_ENV", "development"),
		HTTPBind:    getEnv("GRIMNIR_STATION_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("GRIMNIR_STATION_HTTP_PORT", 8080),
		MetricsBind: getEnv("GRIMNIR_STATION_METRICS_BIND", "127.0.0.1:9000"),

		ReadyRoot:   getEnv("GRIMNIR_STATION_READY_ROOT", "./ready"),
		HistoryLog:  getEnv("GRIMNIR_STATION_HISTORY_LOG", "./play.log"),
		ProfilePath: getEnv("GRIMNIR_STATION_PROFILE", "./station.yaml"),

		DeliveryMode: DeliveryMode(getEnv("GRIMNIR_STATION_DELIVERY_MODE", string(DeliveryLocal))),
		FFmpegBin:    getEnv("GRIMNIR_STATION_FFMPEG_BIN", "ffmpeg"),
		FIFOPath:     getEnv("GRIMNIR_STATION_FIFO_PATH", "/tmp/grimnir_station_audio.fifo"),
		RTMPURL:      getEnv("GRIMNIR_STATION_RTMP_URL", "rtmp://a.rtmp.youtube.com/live2"),
		StreamKey:    getEnv("GRIMNIR_STATION_STREAM_KEY", ""),

		RedisAddr:     getEnv("GRIMNIR_STATION_REDIS_ADDR", ""),
		RedisPassword: getEnv("GRIMNIR_STATION_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("GRIMNIR_STATION_REDIS_DB", 0),
		RedisChannel:  getEnv("GRIMNIR_STATION_REDIS_CHANNEL", "grimnir_station.nowplaying"),

		GenerationURL:    getEnv("GRIMNIR_STATION_GENERATION_URL", "https://api.openai.com/v1"),
		GenerationModel:  getEnv("GRIMNIR_STATION_GENERATION_MODEL", "gpt-4.1-mini"),
		GenerationAPIKey: getEnv("GRIMNIR_STATION_GENERATION_API_KEY", ""),

		SpeechURL:    getEnv("GRIMNIR_STATION_SPEECH_URL", ""),
		SpeechAPIKey: getEnv("GRIMNIR_STATION_SPEECH_API_KEY", ""),
		SpeechVoice:  getEnv("GRIMNIR_STATION_SPEECH_VOICE", "en-US-Wavenet-D"),
	}

	if cfg.DeliveryMode != DeliveryLocal && cfg.DeliveryMode != DeliveryLive {
		return nil, fmt.Errorf("unsupported delivery mode %q", cfg.DeliveryMode)
	}
	if cfg.DeliveryMode == DeliveryLive && cfg.StreamKey == "" {
		return nil, fmt.Errorf("GRIMNIR_STATION_STREAM_KEY must be provided in live delivery mode")
	}

	if err := cfg.loadProfile(); err != nil {
		return nil, err
	}

	// Env can flip podcast blending without editing the profile.
	cfg.Profile.Transitions.IncludePodcasts = getEnvBool("GRIMNIR_STATION_INCLUDE_PODCASTS", cfg.Profile.Transitions.IncludePodcasts)

	return cfg, nil
}

func (c *Config) loadProfile() error {
	raw, err := os.ReadFile(c.ProfilePath)
	if err != nil {
		return fmt.Errorf("read station profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c.Profile); err != nil {
		return fmt.Errorf("parse station profile: %w", err)
	}
	return c.applyProfile()
}

func (c *Config) applyProfile() error {
	if len(c.Profile.Schedule.Pattern) == 0 {
		return fmt.Errorf("station profile: schedule.pattern must not be empty")
	}
	c.Pattern = make([]station.Category, 0, len(c.Profile.Schedule.Pattern))
	for _, raw := range c.Profile.Schedule.Pattern {
		cat, err := station.ParseCategory(raw)
		if err != nil {
			return fmt.Errorf("station profile: %w", err)
		}
		c.Pattern = append(c.Pattern, cat)
	}

	c.HistorySize = c.Profile.History.Size
	if c.HistorySize <= 0 {
		c.HistorySize = defaultHistorySize
	}
	if c.HistorySize > maxHistorySize {
		c.HistorySize = maxHistorySize
	}

	// Weights arrive from hand-edited YAML with no documented range; clamp
	// negatives to zero instead of trusting the input.
	c.Weights = make(map[station.Category]float64, len(c.Profile.History.Weights))
	for raw, w := range c.Profile.History.Weights {
		cat, err := station.ParseCategory(raw)
		if err != nil {
			return fmt.Errorf("station profile: history.weights: %w", err)
		}
		if w < 0 {
			w = 0
		}
		c.Weights[cat] = w
	}

	if c.Profile.Transitions.FunnyRate < 0 {
		c.Profile.Transitions.FunnyRate = 0
	}
	if c.Profile.Transitions.FunnyRate > 1 {
		c.Profile.Transitions.FunnyRate = 1
	}

	mode := UptimeMode(c.Profile.Uptime.Mode)
	switch mode {
	case UptimeNone, UptimeCycle, UptimeTrack:
		c.UptimeMode = mode
	default:
		return fmt.Errorf("station profile: unknown uptime mode %q", c.Profile.Uptime.Mode)
	}
	if c.Profile.Uptime.Hours > 0 {
		c.UptimeBudget = time.Duration(c.Profile.Uptime.Hours * float64(time.Hour))
	}

	return nil
}

// ApplyUptimeOverride applies CLI flag overrides on top of the profile.
func (c *Config) ApplyUptimeOverride(hours float64, mode string) error {
	if hours >= 0 {
		c.UptimeBudget = time.Duration(hours * float64(time.Hour))
	}
	if mode != "" {
		m := UptimeMode(mode)
		if m != UptimeCycle && m != UptimeTrack {
			return fmt.Errorf("unknown uptime mode %q", mode)
		}
		c.UptimeMode = m
	}
	return nil
}

// ReadyDir returns the ready directory for a category.
func (c *Config) ReadyDir(cat station.Category) string {
	return filepath.Join(c.ReadyRoot, cat.String())
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}
