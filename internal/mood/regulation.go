package mood

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RegulationConfig tunes the self-regulation pass.
type RegulationConfig struct {
	Interval time.Duration

	// ExtremeThreshold is the |deviation from baseline| beyond which a
	// dimension is pulled back; dimensions inside the threshold are never
	// touched.
	ExtremeThreshold float64

	// PullFactor is the fraction of the deviation removed per pass, in (0,1).
	PullFactor float64
}

// DefaultRegulationConfig returns the documented defaults.
func DefaultRegulationConfig() RegulationConfig {
	return RegulationConfig{
		Interval:         time.Minute,
		ExtremeThreshold: 0.6,
		PullFactor:       0.25,
	}
}

// Regulator periodically pulls extreme mood dimensions partway back toward
// baseline. This is what keeps one extreme event from locking a mood in
// place. It runs off the event-delivery path and takes the same per-agent
// serialization as any other mutation.
type Regulator struct {
	engine *Engine
	cfg    RegulationConfig
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewRegulator creates a regulator over the given engine.
func NewRegulator(engine *Engine, cfg RegulationConfig, logger *zap.Logger) *Regulator {
	if cfg.Interval == 0 {
		cfg = DefaultRegulationConfig()
	}
	return &Regulator{engine: engine, cfg: cfg, logger: logger}
}

// Start begins the periodic pass in a background goroutine.
func (r *Regulator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.loop(ctx)
	r.logger.Info("mood regulator started", zap.Duration("interval", r.cfg.Interval))
}

// Stop halts the loop.
func (r *Regulator) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.logger.Info("mood regulator stopped")
	}
}

func (r *Regulator) loop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RegulateOnce()
		}
	}
}

// RegulateOnce runs a single regulation pass over all live agents and
// returns how many dimensions were adjusted.
func (r *Regulator) RegulateOnce() int {
	adjusted := 0
	for _, agentID := range r.engine.Agents() {
		adjusted += r.regulateAgent(agentID)
	}
	if adjusted > 0 {
		r.logger.Debug("regulation pass complete", zap.Int("adjusted", adjusted))
	}
	return adjusted
}

func (r *Regulator) regulateAgent(agentID string) int {
	sl := r.engine.slot(agentID)
	if sl == nil {
		return 0
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	st := sl.state
	refs := st.Mood.refs()
	base := sl.baseline.refs()

	adjusted := 0
	for i, p := range refs {
		dev := *p - *base[i]
		if dev > r.cfg.ExtremeThreshold || dev < -r.cfg.ExtremeThreshold {
			*p -= dev * r.cfg.PullFactor
			adjusted++
		}
	}
	if adjusted > 0 {
		st.Version++
		st.LastUpdated = time.Now()
	}
	return adjusted
}
