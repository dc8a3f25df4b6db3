/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package speech turns transition text into short audio clips via an HTTP
// text-to-speech service.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client calls a text-to-speech endpoint that returns raw audio.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a speech client.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type speechRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize converts text to audio and returns the encoded bytes.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	jsonBody, err := json.Marshal(speechRequest{Input: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/audio/speech", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("speech status %d: %s", resp.StatusCode, string(raw))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech returned empty audio")
	}
	return audio, nil
}

// Synthesizer is the surface the clip writer needs from a speech backend.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// ClipWriter persists synthesized transitions as uniquely named files in the
// transition directory so playback and cleanup can treat them like any other
// ready asset.
type ClipWriter struct {
	synth  Synthesizer
	dir    string
	voice  string
	logger zerolog.Logger
}

// NewClipWriter creates a writer that stores clips under dir.
func NewClipWriter(synth Synthesizer, dir, voice string, logger zerolog.Logger) *ClipWriter {
	return &ClipWriter{
		synth:  synth,
		dir:    dir,
		voice:  voice,
		logger: logger.With().Str("component", "speech").Logger(),
	}
}

// Write synthesizes text and writes the clip to disk, returning its path.
// Callers delete the file once it has been delivered.
func (w *ClipWriter) Write(ctx context.Context, text string) (string, error) {
	audio, err := w.synth.Synthesize(ctx, text, w.voice)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create transition dir: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("segway_%s.mp3", uuid.NewString()))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}

	w.logger.Debug().Str("path", path).Int("bytes", len(audio)).Msg("transition clip written")
	return path, nil
}
