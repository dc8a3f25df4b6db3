/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_station/internal/ai"
	"github.com/friendsincode/grimnir_station/internal/config"
	"github.com/friendsincode/grimnir_station/internal/delivery"
	"github.com/friendsincode/grimnir_station/internal/eventbus"
	"github.com/friendsincode/grimnir_station/internal/events"
	"github.com/friendsincode/grimnir_station/internal/history"
	"github.com/friendsincode/grimnir_station/internal/library"
	"github.com/friendsincode/grimnir_station/internal/logbuffer"
	"github.com/friendsincode/grimnir_station/internal/logging"
	"github.com/friendsincode/grimnir_station/internal/scheduler"
	"github.com/friendsincode/grimnir_station/internal/selector"
	"github.com/friendsincode/grimnir_station/internal/server"
	"github.com/friendsincode/grimnir_station/internal/speech"
	"github.com/friendsincode/grimnir_station/internal/transition"
	"github.com/friendsincode/grimnir_station/internal/version"
)

var (
	logger zerolog.Logger
	logBuf *logbuffer.Buffer
	cfg    *config.Config

	flagUptimeHours float64
	flagUptimeMode  string
)

var rootCmd = &cobra.Command{
	Use:     "grimnirstation",
	Short:   "Grimnir Station - Unattended audio station core",
	Long:    "Grimnir Station runs an unattended audio station: a scheduled playback loop over ready-made content with generated spoken transitions, delivered locally or to a live RTMP broadcast.",
	Version: version.Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the station",
	Long:  "Start the playback scheduler, delivery pipeline and control API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Float64Var(&flagUptimeHours, "uptime", -1, "override uptime budget in hours (0 disables the budget)")
	serveCmd.Flags().StringVar(&flagUptimeMode, "uptime-mode", "", "override uptime mode: cycle or track")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(2000)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, os.Stderr))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if err := cfg.ApplyUptimeOverride(flagUptimeHours, flagUptimeMode); err != nil {
		return err
	}

	logger.Info().
		Str("delivery_mode", string(cfg.DeliveryMode)).
		Str("profile", cfg.Profile.StationName).
		Msg("Grimnir Station starting")

	lib := library.New(cfg.ReadyRoot, logger)
	lib.CleanupTransitions()

	hist := history.Open(cfg.HistoryLog, 0, logger)
	sel := selector.New(lib, hist, cfg.HistorySize, logger)

	var gen transition.Generator
	if cfg.GenerationAPIKey != "" {
		gen = ai.NewClient(cfg.GenerationURL, cfg.GenerationAPIKey, cfg.GenerationModel)
	} else {
		logger.Warn().Msg("no generation API key, transitions fall back to templates")
	}

	planner := transition.New(gen, transition.Persona{
		StationName: cfg.Profile.StationName,
		DJName:      cfg.Profile.DJName,
		Vibe:        cfg.Profile.Vibe,
		Context:     cfg.Profile.Context,
		BasePrompt:  cfg.Profile.Transitions.Prompt,
		FunnyPrompt: cfg.Profile.Transitions.FunnyPrompt,
		FunnyRate:   cfg.Profile.Transitions.FunnyRate,
	}, logger)

	voice := cfg.Profile.Transitions.Voice
	if voice == "" {
		voice = cfg.SpeechVoice
	}
	synth := speech.NewClient(cfg.SpeechURL, cfg.SpeechAPIKey)
	clips := speech.NewClipWriter(synth, lib.TransitionDir(), voice, logger)

	registry := delivery.NewRegistry(logger)
	var sink delivery.Sink
	if cfg.DeliveryMode == config.DeliveryLive {
		sink = delivery.NewLive(delivery.LiveConfig{
			FFmpegBin:  cfg.FFmpegBin,
			FIFOPath:   cfg.FIFOPath,
			RTMPURL:    cfg.RTMPURL,
			StreamKey:  cfg.StreamKey,
			CoverImage: lib.RandomCoverImage,
		}, registry, logger)
	} else {
		sink = delivery.NewLocal(cfg.FFmpegBin, registry, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	var relay *eventbus.Relay
	if cfg.RedisAddr != "" {
		rcfg := eventbus.DefaultRedisConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPassword
		rcfg.DB = cfg.RedisDB
		rcfg.Channel = cfg.RedisChannel
		relay = eventbus.NewRelay(rcfg, uuid.NewString(), logger)
		relay.Run(ctx, bus,
			events.EventNowPlaying,
			events.EventTransition,
			events.EventHealth,
			events.EventStopping,
		)
	}

	sched := scheduler.New(scheduler.Options{
		Pattern:         cfg.Pattern,
		HistorySize:     cfg.HistorySize,
		Weights:         cfg.Weights,
		UptimeBudget:    cfg.UptimeBudget,
		UptimeMode:      cfg.UptimeMode,
		IncludePodcasts: cfg.Profile.Transitions.IncludePodcasts,
	}, sel, planner, clips, hist, sink, bus, logger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv := server.New(addr, sched.State(), hist, logBuf, logger)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("control API failed")
		}
	}()

	// Periodic health heartbeat for external consumers on the relay channel.
	startedAt := time.Now()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, onAir := sched.State().NowPlaying()
				bus.Publish(events.EventHealth, events.Payload{
					"uptime_seconds": int(time.Since(startedAt).Seconds()),
					"on_air":         onAir,
				})
			}
		}
	}()

	// First signal asks for a clean stop, finishing the clip on air. A second
	// signal cancels outright.
	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info().Msg("stop signal received, finishing current clip")
		sched.State().RequestStop()
		<-quit
		logger.Warn().Msg("second stop signal, forcing shutdown")
		cancel()
	}()

	if err := sink.Start(ctx); err != nil {
		return fmt.Errorf("start delivery pipeline: %w", err)
	}

	runErr := sched.Run(ctx)

	logger.Info().Msg("shutting down")
	if err := sink.Stop(); err != nil {
		logger.Error().Err(err).Msg("delivery teardown failed")
	}
	registry.Shutdown(5 * time.Second)
	if relay != nil {
		_ = relay.Close()
	}
	cancel()

	lib.CleanupTransitions()

	if runErr != nil {
		return fmt.Errorf("playback loop: %w", runErr)
	}
	logger.Info().Msg("Grimnir Station stopped")
	return nil
}
