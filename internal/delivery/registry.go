/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package delivery plays finished audio out of the station, either to a local
// sink or into a live RTMP encode chain. Every external process it spawns is
// tracked so shutdown can sweep stragglers.
package delivery

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry tracks running child processes for shutdown sweeps.
type Registry struct {
	mu     sync.Mutex
	procs  map[*exec.Cmd]chan struct{}
	logger zerolog.Logger
}

// NewRegistry creates a process registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		procs:  make(map[*exec.Cmd]chan struct{}),
		logger: logger.With().Str("component", "delivery").Logger(),
	}
}

// Track registers a started command. The returned done function must be
// called once the command has been waited on.
func (r *Registry) Track(cmd *exec.Cmd) func() {
	done := make(chan struct{})
	r.mu.Lock()
	r.procs[cmd] = done
	r.mu.Unlock()

	return func() {
		close(done)
		r.mu.Lock()
		delete(r.procs, cmd)
		r.mu.Unlock()
	}
}

// Len reports the number of tracked processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Shutdown interrupts every tracked process and kills whatever is still
// around after the grace period.
func (r *Registry) Shutdown(grace time.Duration) {
	r.mu.Lock()
	procs := make(map[*exec.Cmd]chan struct{}, len(r.procs))
	for cmd, done := range r.procs {
		procs[cmd] = done
	}
	r.mu.Unlock()

	if len(procs) == 0 {
		return
	}
	r.logger.Info().Int("count", len(procs)).Msg("sweeping tracked processes")

	for cmd := range procs {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(os.Interrupt)
		}
	}

	deadline := time.After(grace)
	for cmd, done := range procs {
		select {
		case <-done:
		case <-deadline:
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			deadline = time.After(0)
		}
	}
}
