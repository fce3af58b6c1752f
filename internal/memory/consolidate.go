package memory

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// ConsolidationReport summarizes one pass over a bank.
type ConsolidationReport struct {
	Promoted       []*Record
	Expired        int
	Forgotten      int
	ConceptsMerged int
}

// Consolidate runs one full pass: promotion, expiry, semantic mining, then
// forgetting. It takes the bank mutex so it never races event ingestion.
func (b *Bank) Consolidate(now time.Time) ConsolidationReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	var rep ConsolidationReport

	// Short-term records above the promotion threshold become episodic; the
	// rest wait out their TTL.
	for _, r := range b.short.live(now) {
		if r.Salience >= b.cfg.PromotionThreshold {
			b.short.take(r.ID)
			b.episodic.add(r)
			rep.Promoted = append(rep.Promoted, r)
		}
	}
	rep.Expired = b.short.sweep(now)

	rep.ConceptsMerged = b.mineConcepts(now)
	rep.Forgotten = b.forget(now)
	b.lastSweep = now
	return rep
}

// mineConcepts abstracts the recent episodic window into semantic concepts.
// Keywords recurring across the window become concept nodes; keywords sharing
// a record become relations. Merging is additive, so a noisy window can only
// reinforce or extend the graph, never erase it.
func (b *Bank) mineConcepts(now time.Time) int {
	recent := b.episodic.recent(now.Add(-b.cfg.MiningWindow))
	if len(recent) == 0 {
		return 0
	}

	count := make(map[string]int)
	firstSeen := make(map[string]string)
	for _, r := range recent {
		for _, kw := range r.Keywords {
			count[kw]++
			if _, ok := firstSeen[kw]; !ok {
				firstSeen[kw] = snippet(r.Content, 120)
			}
		}
	}

	mined := make(map[string]bool)
	for kw, n := range count {
		if n >= b.cfg.MiningMinOccurrences {
			mined[kw] = true
		}
	}
	if len(mined) == 0 {
		return 0
	}

	merged := 0
	for _, r := range recent {
		var present []string
		for _, kw := range r.Keywords {
			if mined[kw] {
				present = append(present, kw)
			}
		}
		for _, kw := range present {
			b.semantic.merge(kw, firstSeen[kw], present, now)
			merged++
		}
	}
	return merged
}

// forget decays salience and removes episodic records that are below the
// retention floor, rarely accessed, and emotionally flat. A record whose
// decayed salience still clears the floor is never removed.
func (b *Bank) forget(now time.Time) int {
	elapsed := now.Sub(b.lastSweep)
	if elapsed <= 0 {
		return 0
	}
	factor := math.Pow(0.5, elapsed.Hours()/b.cfg.DecayHalfLife.Hours())

	var victims []string
	for _, r := range b.episodic.all() {
		r.Salience *= factor
		if r.Salience >= b.cfg.RetentionFloor {
			continue
		}
		if r.AccessCount > b.cfg.RareAccessMax {
			continue
		}
		if math.Abs(r.Charge) >= b.cfg.ChargeShield {
			continue
		}
		victims = append(victims, r.ID)
	}
	for _, id := range victims {
		b.episodic.remove(id)
	}
	b.semantic.decay(factor, b.cfg.RetentionFloor)
	return len(victims)
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Consolidator drives periodic consolidation across every bank a manager
// holds. It runs off the event-delivery path.
type Consolidator struct {
	manager  *Manager
	interval time.Duration
	cancel   context.CancelFunc
	logger   *zap.Logger

	// OnPromote, when set, is called for each record promoted to episodic.
	// The minion container uses it to publish memory-write notices.
	OnPromote func(agentID string, rec *Record)
}

// NewConsolidator creates a consolidator over the manager's banks.
func NewConsolidator(manager *Manager, interval time.Duration, logger *zap.Logger) *Consolidator {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Consolidator{manager: manager, interval: interval, logger: logger}
}

// Start begins the periodic pass in a background goroutine.
func (c *Consolidator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(ctx)
	c.logger.Info("memory consolidator started", zap.Duration("interval", c.interval))
}

// Stop halts the loop.
func (c *Consolidator) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.logger.Info("memory consolidator stopped")
	}
}

func (c *Consolidator) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ConsolidateOnce(time.Now())
		}
	}
}

// ConsolidateOnce runs one pass over every live bank.
func (c *Consolidator) ConsolidateOnce(now time.Time) {
	for _, agentID := range c.manager.Agents() {
		bank := c.manager.Bank(agentID)
		if bank == nil {
			continue
		}
		rep := bank.Consolidate(now)
		if rep.ConceptsMerged > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			c.manager.EmbedConcepts(ctx, agentID)
			cancel()
		}
		if c.OnPromote != nil {
			for _, rec := range rep.Promoted {
				c.OnPromote(agentID, rec)
			}
		}
		if len(rep.Promoted) > 0 || rep.Expired > 0 || rep.Forgotten > 0 {
			c.logger.Debug("consolidation pass",
				zap.String("agent", agentID),
				zap.Int("promoted", len(rep.Promoted)),
				zap.Int("expired", rep.Expired),
				zap.Int("forgotten", rep.Forgotten),
				zap.Int("concepts", rep.ConceptsMerged))
		}
	}
}
