/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/telemetry"
)

// ErrPipelineDown is returned by Play once either encode stage has exited.
// The live chain is not restarted; the station treats this as fatal.
var ErrPipelineDown = errors.New("live pipeline down")

// LiveConfig describes the RTMP encode chain.
type LiveConfig struct {
	FFmpegBin string
	FIFOPath  string
	RTMPURL   string
	StreamKey string

	// CoverImage picks the still image shown behind the stream.
	CoverImage func() (string, error)
}

// LiveSink feeds decoded audio into a standing two-stage ffmpeg chain: a
// buffer process writing raw PCM to a FIFO, and an encoder mixing that FIFO
// with a silence source under a cover image, pushed to RTMP. The silence mix
// keeps the stream alive between clips.
type LiveSink struct {
	cfg      LiveConfig
	registry *Registry
	logger   zerolog.Logger

	mu         sync.Mutex
	stdin      io.WriteCloser
	bufferCmd  *exec.Cmd
	encodeCmd  *exec.Cmd
	bufferDone chan struct{}
	encodeDone chan struct{}
}

// NewLive creates a live delivery sink.
func NewLive(cfg LiveConfig, registry *Registry, logger zerolog.Logger) *LiveSink {
	return &LiveSink{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With().Str("component", "delivery").Str("mode", "live").Logger(),
	}
}

// Start launches both encode stages.
func (s *LiveSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		return fmt.Errorf("live pipeline already running")
	}

	if _, err := os.Stat(s.cfg.FIFOPath); err != nil {
		if err := syscall.Mkfifo(s.cfg.FIFOPath, 0o644); err != nil {
			return fmt.Errorf("create fifo %s: %w", s.cfg.FIFOPath, err)
		}
	}

	cover, err := s.cfg.CoverImage()
	if err != nil {
		return fmt.Errorf("pick cover image: %w", err)
	}
	s.logger.Info().Str("cover", cover).Msg("starting live encode chain")

	buffer := exec.CommandContext(ctx, s.cfg.FFmpegBin,
		"-hide_banner", "-loglevel", "warning",
		"-y",
		"-f", "s16le", "-ar", "44100", "-ac", "2", "-i", "pipe:0",
		"-c:a", "pcm_s16le", "-f", "s16le", s.cfg.FIFOPath,
	)
	stdin, err := buffer.StdinPipe()
	if err != nil {
		return fmt.Errorf("create buffer stdin: %w", err)
	}

	encode := exec.CommandContext(ctx, s.cfg.FFmpegBin,
		"-hide_banner", "-loglevel", "warning",
		"-re", "-f", "lavfi", "-i", "color=c=black:s=1280x720:r=5,format=yuv420p",
		"-loop", "1", "-framerate", "5", "-i", cover,
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-re", "-f", "s16le", "-ar", "44100", "-ac", "2", "-i", s.cfg.FIFOPath,
		"-filter_complex",
		"[0:v][1:v]overlay=x=(W-w)/2:y=(H-h)/2,format=yuv420p[v];"+
			"[2:a][3:a]amix=inputs=2:duration=first:dropout_transition=2[aout]",
		"-map", "[v]", "-map", "[aout]",
		"-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency", "-g", "60",
		"-pix_fmt", "yuv420p", "-b:v", "2500k", "-maxrate", "2500k", "-bufsize", "5000k",
		"-c:a", "aac", "-b:a", "192k", "-ar", "44100", "-ac", "2",
		"-r", "5", "-fps_mode", "cfr",
		"-max_muxing_queue_size", "9999",
		"-f", "flv", s.cfg.RTMPURL+"/"+s.cfg.StreamKey,
	)

	if err := buffer.Start(); err != nil {
		return fmt.Errorf("start buffer stage: %w", err)
	}
	bufferUntrack := s.registry.Track(buffer)

	if err := encode.Start(); err != nil {
		if buffer.Process != nil {
			_ = buffer.Process.Kill()
		}
		_ = buffer.Wait()
		bufferUntrack()
		return fmt.Errorf("start encode stage: %w", err)
	}
	encodeUntrack := s.registry.Track(encode)

	s.stdin = stdin
	s.bufferCmd = buffer
	s.encodeCmd = encode
	s.bufferDone = make(chan struct{})
	s.encodeDone = make(chan struct{})
	telemetry.LivePipelineUp.Set(1)

	go func(done chan struct{}) {
		err := buffer.Wait()
		close(done)
		bufferUntrack()
		s.logger.Warn().Err(err).Msg("buffer stage exited")
		telemetry.LivePipelineUp.Set(0)
		// Without a buffer feeding the fifo the encoder is useless.
		if encode.Process != nil {
			_ = encode.Process.Kill()
		}
	}(s.bufferDone)

	go func(done chan struct{}) {
		err := encode.Wait()
		close(done)
		encodeUntrack()
		s.logger.Warn().Err(err).Msg("encode stage exited")
		telemetry.LivePipelineUp.Set(0)
	}(s.encodeDone)

	return nil
}

// down reports whether either stage has exited.
func (s *LiveSink) down() bool {
	select {
	case <-s.bufferDone:
		return true
	default:
	}
	select {
	case <-s.encodeDone:
		return true
	default:
	}
	return false
}

// Play decodes the file into the standing buffer stage and blocks until the
// decoder finishes. The buffer's stdin is shared across clips, so the decode
// output is attached without ever closing it.
func (s *LiveSink) Play(ctx context.Context, path string) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	if stdin == nil {
		s.logger.Warn().Str("path", path).Msg("live pipeline not started, skipping clip")
		return nil
	}
	if s.down() {
		return ErrPipelineDown
	}

	decoder := exec.CommandContext(ctx, s.cfg.FFmpegBin,
		"-re", "-hide_banner", "-loglevel", "warning",
		"-i", path,
		"-f", "s16le", "-ar", "44100", "-ac", "2", "pipe:1",
	)
	stdout, err := decoder.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create decoder stdout: %w", err)
	}

	if err := decoder.Start(); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}
	untrack := s.registry.Track(decoder)
	defer untrack()

	copyErr := attach(stdin, stdout)
	waitErr := decoder.Wait()

	if s.down() {
		return ErrPipelineDown
	}
	if copyErr != nil {
		return fmt.Errorf("feed buffer stage: %w", copyErr)
	}
	if waitErr != nil {
		// Decoder hiccups on a single clip are not fatal to the stream.
		s.logger.Warn().Err(waitErr).Str("path", path).Msg("decoder exited with error")
	}
	return nil
}

// attach streams src into dst without closing dst when src ends.
func attach(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

// Stop tears down the encode chain: the buffer stdin is closed so Stage A
// drains out, and the encoder gets an interrupt with a kill after the grace
// period.
func (s *LiveSink) Stop() error {
	s.mu.Lock()
	stdin := s.stdin
	buffer := s.bufferCmd
	encode := s.encodeCmd
	bufferDone := s.bufferDone
	encodeDone := s.encodeDone
	s.stdin = nil
	s.mu.Unlock()

	if stdin == nil {
		return nil
	}
	s.logger.Info().Msg("stopping live encode chain")

	_ = stdin.Close()

	if encode != nil && encode.Process != nil {
		_ = encode.Process.Signal(os.Interrupt)
	}

	stages := []struct {
		cmd  *exec.Cmd
		done chan struct{}
	}{
		{encode, encodeDone},
		{buffer, bufferDone},
	}
	for _, stage := range stages {
		if stage.done == nil {
			continue
		}
		select {
		case <-stage.done:
		case <-time.After(5 * time.Second):
			if stage.cmd != nil && stage.cmd.Process != nil {
				_ = stage.cmd.Process.Kill()
			}
		}
	}
	return nil
}
