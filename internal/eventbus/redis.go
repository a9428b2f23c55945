/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus onto Redis pub/sub so
// notification consumers (web dashboards, companion bots) on other nodes
// see the same now-playing and queue events. Redis being down never blocks
// playback: a circuit breaker drops to the in-memory bus.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/events"
)

// RedisBus mirrors local event publishes onto Redis channels and feeds
// remote publishes back into local subscribers.
type RedisBus struct {
	cfg      RedisConfig
	client   *redis.Client
	logger   zerolog.Logger
	fallback *events.Bus
	nodeID   string

	mu       sync.RWMutex
	subs     map[events.EventType][]events.Subscriber
	channels map[events.EventType]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	useFallback bool
	failCount   int
	maxFails    int
	lastCheck   time.Time
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

func newClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// NewRedisBus connects to Redis. When the initial ping fails the bus starts
// in fallback mode and behaves exactly like the in-memory bus until a
// later TryReconnect succeeds.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rb := &RedisBus{
		cfg:      cfg,
		logger:   logger,
		fallback: events.NewBus(),
		nodeID:   nodeID,
		maxFails: cfg.MaxFailures,
		subs:     make(map[events.EventType][]events.Subscriber),
		channels: make(map[events.EventType]*redis.PubSub),
		ctx:      ctx,
		cancel:   cancel,
	}

	client := newClient(cfg)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using in-memory fallback")
		_ = client.Close()
		rb.useFallback = true
		return rb, nil
	}

	rb.client = client
	logger.Info().Str("addr", cfg.Addr).Msg("redis event bus initialized")
	return rb, nil
}

// Subscribe registers a subscriber for an event type. The subscriber is
// always served by the local bus; while Redis is connected it also
// receives remote publishes, including those arriving after a reconnect.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	sub := rb.fallback.Subscribe(eventType)
	rb.subs[eventType] = append(rb.subs[eventType], sub)

	if !rb.useFallback {
		rb.ensureChannelLocked(eventType)
	}
	return sub
}

// ensureChannelLocked opens the Redis subscription for an event type if
// it is not already running. Callers hold rb.mu.
func (rb *RedisBus) ensureChannelLocked(eventType events.EventType) {
	if _, exists := rb.channels[eventType]; exists {
		return
	}
	pubsub := rb.client.Subscribe(rb.ctx, string(eventType))
	rb.channels[eventType] = pubsub
	rb.wg.Add(1)
	go rb.receive(eventType, pubsub)
}

// receive pumps remote Redis messages into local subscribers, skipping
// messages this node published itself.
func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()

	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.logger.Warn().Str("event_type", string(eventType)).Msg("redis channel closed")
				rb.handleFailure()
				return
			}

			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				rb.logger.Error().Err(err).Msg("failed to unmarshal redis message")
				continue
			}
			if rm.NodeID == rb.nodeID {
				continue
			}

			rb.mu.RLock()
			subs := append([]events.Subscriber(nil), rb.subs[eventType]...)
			rb.mu.RUnlock()

			for _, sub := range subs {
				select {
				case sub <- rm.Payload:
				default:
					rb.logger.Warn().Str("event_type", string(eventType)).Msg("subscriber channel full, dropping event")
				}
			}
		}
	}
}

// Publish sends an event payload to all subscribers, local and remote.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	// Same-node subscribers are always served through the in-memory bus.
	rb.fallback.Publish(eventType, payload)

	if rb.useFallback {
		return
	}

	data, err := json.Marshal(redisMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    rb.nodeID,
	})
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()

	if err := rb.client.Publish(ctx, string(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a subscriber and tears down the Redis subscription
// when it was the last one for its event type.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.mu.Lock()
	subs := rb.subs[eventType]
	for i, s := range subs {
		if s == sub {
			rb.subs[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(rb.subs[eventType]) == 0 {
		if pubsub, exists := rb.channels[eventType]; exists {
			pubsub.Close()
			delete(rb.channels, eventType)
		}
	}
	rb.mu.Unlock()

	// The local bus owns the channel and closes it.
	rb.fallback.Unsubscribe(eventType, sub)
}

// Close closes the Redis connection and all subscriptions.
func (rb *RedisBus) Close() error {
	if rb.cancel != nil {
		rb.cancel()
	}
	rb.wg.Wait()

	rb.mu.Lock()
	for _, pubsub := range rb.channels {
		pubsub.Close()
	}
	rb.channels = make(map[events.EventType]*redis.PubSub)
	rb.mu.Unlock()

	if rb.client != nil {
		if err := rb.client.Close(); err != nil {
			return fmt.Errorf("close redis client: %w", err)
		}
	}
	return nil
}

// handleFailure trips the circuit breaker once the failure threshold is
// reached; subsequent publishes stay local until TryReconnect succeeds.
func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("redis failure threshold reached, switching to in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		if rb.client != nil {
			rb.client.Close()
			rb.client = nil
		}
	}
}

// TryReconnect attempts to leave fallback mode with a fresh client (the
// old one is closed when the breaker trips). Callers invoke it on a
// periodic ticker; it rate-limits itself to one probe per CheckInterval.
func (rb *RedisBus) TryReconnect() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.useFallback {
		return nil
	}
	interval := rb.cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if !rb.lastCheck.IsZero() && time.Since(rb.lastCheck) < interval {
		return fmt.Errorf("too soon to retry")
	}
	rb.lastCheck = time.Now()

	client := newClient(rb.cfg)
	ctx, cancel := context.WithTimeout(rb.ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis still unavailable: %w", err)
	}

	rb.client = client
	rb.useFallback = false
	rb.failCount = 0

	// Re-open remote feeds for every event type with live subscribers;
	// pre-trip subscriptions are dead along with the old client.
	for _, pubsub := range rb.channels {
		pubsub.Close()
	}
	rb.channels = make(map[events.EventType]*redis.PubSub)
	for eventType, subs := range rb.subs {
		if len(subs) > 0 {
			rb.ensureChannelLocked(eventType)
		}
	}

	rb.logger.Info().Msg("reconnected to redis, disabling fallback")
	return nil
}

type redisMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}
