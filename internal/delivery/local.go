/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package delivery

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Sink plays audio files in sequence. Play blocks for the duration of the
// clip so the scheduler's cadence follows real playback time.
type Sink interface {
	Start(ctx context.Context) error
	Play(ctx context.Context, path string) error
	Stop() error
}

// LocalSink decodes each clip straight to the default pulse sink. Used for
// desk monitoring and development.
type LocalSink struct {
	ffmpegBin string
	registry  *Registry
	logger    zerolog.Logger
}

// NewLocal creates a local playback sink.
func NewLocal(ffmpegBin string, registry *Registry, logger zerolog.Logger) *LocalSink {
	return &LocalSink{
		ffmpegBin: ffmpegBin,
		registry:  registry,
		logger:    logger.With().Str("component", "delivery").Str("mode", "local").Logger(),
	}
}

// Start is a no-op; local playback has no standing pipeline.
func (s *LocalSink) Start(ctx context.Context) error { return nil }

// Play decodes the file to the pulse sink and blocks until it finishes.
func (s *LocalSink) Play(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegBin,
		"-hide_banner", "-loglevel", "warning",
		"-i", path, "-vn",
		"-c:a", "pcm_s16le", "-ar", "44100", "-ac", "2",
		"-f", "pulse", "default",
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	untrack := s.registry.Track(cmd)
	defer untrack()

	s.logger.Debug().Str("path", path).Msg("playing")
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("playback %s: %w", path, err)
	}
	return nil
}

// Stop is a no-op; in-flight clips are cancelled through their context.
func (s *LocalSink) Stop() error { return nil }
