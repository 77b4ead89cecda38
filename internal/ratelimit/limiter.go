// Package ratelimit bounds the rate of outbound LLM requests shared by
// all evaluation workers.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures the request rate limiter.
type Config struct {
	// RequestsPerSecond is the sustained request rate across workers.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// BurstSize is the number of requests allowed in a burst.
	BurstSize int `yaml:"burst_size"`
	// Enabled controls whether limiting is active.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a limiter sized for typical provider quotas.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5.0,
		BurstSize:         10,
		Enabled:           true,
	}
}

// Bucket implements token-bucket rate limiting. Safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	enabled    bool
}

// NewBucket creates a token bucket from config. A disabled config yields
// a bucket whose Allow and Wait never block.
func NewBucket(config Config) *Bucket {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = int(config.RequestsPerSecond * 2)
	}

	return &Bucket{
		tokens:     float64(config.BurstSize),
		maxTokens:  float64(config.BurstSize),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
		enabled:    config.Enabled,
	}
}

// Allow consumes a token if one is available.
func (b *Bucket) Allow() bool {
	if b == nil || !b.enabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is cancelled.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		if b.Allow() {
			return nil
		}

		d := b.waitTime()
		if d < time.Millisecond {
			d = time.Millisecond
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens reports the current token count. Intended for tests and metrics.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// waitTime estimates how long until one token is available.
func (b *Bucket) waitTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		return 0
	}
	needed := 1 - b.tokens
	return time.Duration(needed / b.refillRate * float64(time.Second))
}

// refill adds tokens for elapsed time. Caller must hold the lock.
func (b *Bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
}
