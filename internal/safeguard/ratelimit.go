package safeguard

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateConfig is the per-(agent, channel) send quota.
type RateConfig struct {
	Quota  int           `json:"quota"`
	Window time.Duration `json:"window"`
}

// DefaultRateConfig returns the documented default of 3 sends per 10s.
func DefaultRateConfig() RateConfig {
	return RateConfig{Quota: 3, Window: 10 * time.Second}
}

type limiterKey struct {
	agentID   string
	channelID string
}

// RateLimiter enforces a token bucket per (agent, channel). Limiters are
// created lazily on first use. The clock is injectable so tests can walk
// through a window deterministically.
type RateLimiter struct {
	cfg RateConfig
	now func() time.Time

	mu       sync.Mutex
	limiters map[limiterKey]*rate.Limiter
}

// NewRateLimiter creates a limiter with the real clock.
func NewRateLimiter(cfg RateConfig) *RateLimiter {
	if cfg.Quota <= 0 || cfg.Window <= 0 {
		cfg = DefaultRateConfig()
	}
	return &RateLimiter{
		cfg:      cfg,
		now:      time.Now,
		limiters: make(map[limiterKey]*rate.Limiter),
	}
}

// SetClock replaces the clock, for tests.
func (r *RateLimiter) SetClock(now func() time.Time) { r.now = now }

// Allow consumes one send token for the pair, reporting whether the send
// fits the quota.
func (r *RateLimiter) Allow(agentID, channelID string) bool {
	key := limiterKey{agentID: agentID, channelID: channelID}
	r.mu.Lock()
	lim, ok := r.limiters[key]
	if !ok {
		// Burst equals the quota: a quiet channel can absorb a full window's
		// worth of sends at once, then refills evenly.
		lim = rate.NewLimiter(rate.Every(r.cfg.Window/time.Duration(r.cfg.Quota)), r.cfg.Quota)
		r.limiters[key] = lim
	}
	r.mu.Unlock()
	return lim.AllowN(r.now(), 1)
}
