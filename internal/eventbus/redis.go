/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus relays in-process station events to Redis pub/sub so
// external consumers (web frontends, now-playing widgets) can follow along.
// The relay is strictly outbound and best-effort: a dead Redis never affects
// playback.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/events"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Relay disables itself after this many consecutive publish failures.
	MaxFailures int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Channel:      "grimnir:station:events",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxFailures:  5,
	}
}

// Relay forwards bus events to a Redis channel.
type Relay struct {
	client  *redis.Client
	channel string
	nodeID  string
	logger  zerolog.Logger

	mu        sync.Mutex
	disabled  bool
	failCount int
	maxFails  int

	wg sync.WaitGroup
}

// NewRelay connects to Redis and returns a relay. If Redis is unreachable the
// relay comes up disabled instead of failing startup.
func NewRelay(cfg RedisConfig, nodeID string, logger zerolog.Logger) *Relay {
	logger = logger.With().Str("component", "eventbus").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	r := &Relay{
		client:   client,
		channel:  cfg.Channel,
		nodeID:   nodeID,
		logger:   logger,
		maxFails: cfg.MaxFailures,
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unreachable, event relay disabled")
		r.disabled = true
		client.Close()
		return r
	}

	logger.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("Redis event relay initialized")
	return r
}

// Run subscribes to the given event types and forwards each event until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context, bus *events.Bus, types ...events.EventType) {
	for _, eventType := range types {
		sub := bus.Subscribe(eventType)
		r.wg.Add(1)
		go func(eventType events.EventType, sub events.Subscriber) {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					r.publish(ctx, eventType, payload)
				}
			}
		}(eventType, sub)
	}
}

// Wait blocks until all forwarding goroutines have stopped.
func (r *Relay) Wait() {
	r.wg.Wait()
}

// Close releases the Redis connection.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return nil
	}
	r.disabled = true
	return r.client.Close()
}

type redisMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}

func (r *Relay) publish(ctx context.Context, eventType events.EventType, payload events.Payload) {
	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	data, err := json.Marshal(redisMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    r.nodeID,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to marshal Redis message")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Publish(pubCtx, r.channel, data).Err(); err != nil {
		r.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		r.handleFailure()
		return
	}

	r.mu.Lock()
	r.failCount = 0
	r.mu.Unlock()
}

func (r *Relay) handleFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failCount++
	if r.failCount >= r.maxFails && !r.disabled {
		r.logger.Warn().
			Int("fail_count", r.failCount).
			Msg("Redis failure threshold reached, disabling event relay")
		r.disabled = true
		r.client.Close()
	}
}
