package safeguard

import (
	"sync"
)

// HealthConfig tunes the conversation-health gate.
type HealthConfig struct {
	WindowSize int     `json:"window_size"`
	Ceiling    float64 `json:"ceiling"` // rolling repetition score above this blocks

	// MinSamples is how many sends the window needs before the score counts.
	// Short exchanges are left to the loop detector.
	MinSamples int `json:"min_samples"`
}

// DefaultHealthConfig returns the documented defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{WindowSize: 10, Ceiling: 0.6, MinSamples: 5}
}

// HealthGate tracks a rolling repetition score per channel: the fraction of
// recent sends that were not novel. A channel going in circles trips the
// ceiling regardless of which agent is sending.
type HealthGate struct {
	cfg HealthConfig

	mu      sync.Mutex
	windows map[string][]string // channel id -> recent normalized contents
}

// NewHealthGate creates a gate.
func NewHealthGate(cfg HealthConfig) *HealthGate {
	if cfg.WindowSize <= 0 || cfg.Ceiling <= 0 {
		cfg = DefaultHealthConfig()
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultHealthConfig().MinSamples
	}
	return &HealthGate{cfg: cfg, windows: make(map[string][]string)}
}

// Repetition returns the channel's current rolling repetition score in [0,1].
func (h *HealthGate) Repetition(channelID string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.repetition(h.windows[channelID])
}

// Exceeds reports whether adding the candidate would push the channel's
// repetition score past the ceiling.
func (h *HealthGate) Exceeds(channelID, content string) (bool, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	window := append(append([]string{}, h.windows[channelID]...), normalize(content))
	if len(window) > h.cfg.WindowSize {
		window = window[len(window)-h.cfg.WindowSize:]
	}
	score := h.repetition(window)
	return score > h.cfg.Ceiling, score
}

// RecordSent folds an approved send into the rolling window.
func (h *HealthGate) RecordSent(channelID, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	window := append(h.windows[channelID], normalize(content))
	if len(window) > h.cfg.WindowSize {
		window = window[len(window)-h.cfg.WindowSize:]
	}
	h.windows[channelID] = window
}

// repetition is 1 - distinct/total over the window; a window below the
// sample minimum scores zero.
func (h *HealthGate) repetition(window []string) float64 {
	if len(window) < h.cfg.MinSamples {
		return 0
	}
	distinct := make(map[string]bool, len(window))
	for _, w := range window {
		distinct[w] = true
	}
	return 1 - float64(len(distinct))/float64(len(window))
}
