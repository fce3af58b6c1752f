// Package safeguard gates outbound messages against runaway conversation
// patterns. A block is an expected outcome carried in the Decision value,
// never an error.
package safeguard

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of a safeguard check.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
	Risk    float64 `json:"risk"`
}

// Config aggregates the three check configurations.
type Config struct {
	Rate   RateConfig   `json:"rate"`
	Loop   LoopConfig   `json:"loop"`
	Health HealthConfig `json:"health"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Rate:   DefaultRateConfig(),
		Loop:   DefaultLoopConfig(),
		Health: DefaultHealthConfig(),
	}
}

// Gate runs the checks in a fixed order, short-circuiting on the first
// failure: rate limit, then loop patterns, then conversation health.
type Gate struct {
	rate   *RateLimiter
	loops  *LoopDetector
	health *HealthGate
	logger *zap.Logger
}

// NewGate creates a gate from the config.
func NewGate(cfg Config, logger *zap.Logger) *Gate {
	return &Gate{
		rate:   NewRateLimiter(cfg.Rate),
		loops:  NewLoopDetector(cfg.Loop),
		health: NewHealthGate(cfg.Health),
		logger: logger,
	}
}

// RateLimiter exposes the inner limiter, for clock injection in tests.
func (g *Gate) RateLimiter() *RateLimiter { return g.rate }

// Check evaluates an outbound send. A blocked Decision carries the reason of
// the first failing check; later checks are not consulted.
func (g *Gate) Check(agentID, channelID, content string) Decision {
	if !g.rate.Allow(agentID, channelID) {
		g.logger.Debug("send blocked by rate limit",
			zap.String("agent", agentID), zap.String("channel", channelID))
		return Decision{Reason: "rate limit exceeded for channel", Risk: 0.3}
	}

	if exceeded, score, pattern := g.loops.Exceeds(agentID, channelID, content); exceeded {
		g.logger.Warn("send blocked by loop pattern",
			zap.String("agent", agentID),
			zap.String("channel", channelID),
			zap.String("pattern", pattern),
			zap.Float64("score", score))
		return Decision{Reason: fmt.Sprintf("loop pattern detected: %s", pattern), Risk: score}
	}

	if exceeded, score := g.health.Exceeds(channelID, content); exceeded {
		g.logger.Warn("send blocked by conversation health",
			zap.String("agent", agentID),
			zap.String("channel", channelID),
			zap.Float64("repetition", score))
		return Decision{Reason: "conversation repetition above health ceiling", Risk: score}
	}

	return Decision{Allowed: true}
}

// RecordSent folds a delivered message into the loop and health histories.
// Callers invoke it only after the transport accepted the send.
func (g *Gate) RecordSent(agentID, channelID, content string, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	g.loops.RecordSent(agentID, channelID, content, at)
	g.health.RecordSent(channelID, content)
}

// Status is a read-only view for introspection endpoints.
type Status struct {
	ChannelID  string  `json:"channel_id"`
	Repetition float64 `json:"repetition"`
}

// ChannelStatus reports the health window for one channel.
func (g *Gate) ChannelStatus(channelID string) Status {
	return Status{ChannelID: channelID, Repetition: g.health.Repetition(channelID)}
}
