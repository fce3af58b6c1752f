package relationship

import (
	"time"

	"github.com/varkas/minion-mind/internal/core"
	"go.uber.org/zap"
)

// EntityType categorizes the counterpart of an opinion.
type EntityType string

const (
	EntityUser   EntityType = "user"
	EntityMinion EntityType = "minion"
	EntityOther  EntityType = "other"
)

// Opinion score bounds.
const (
	ScoreMin = -100.0
	ScoreMax = 100.0
)

// NotableEvent is a remembered interaction that moved an opinion sharply.
type NotableEvent struct {
	Summary    string    `json:"summary"`
	Delta      Delta     `json:"delta"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OpinionScore tracks trust, respect and affection toward one entity.
// Overall sentiment is always derived, never stored.
type OpinionScore struct {
	EntityID         string         `json:"entity_id"`
	EntityType       EntityType     `json:"entity_type"`
	Trust            float64        `json:"trust"`
	Respect          float64        `json:"respect"`
	Affection        float64        `json:"affection"`
	InteractionCount int            `json:"interaction_count"`
	LastInteraction  time.Time      `json:"last_interaction"`
	NotableEvents    []NotableEvent `json:"notable_events,omitempty"`
}

// OverallSentiment is the mean of the three dimensions.
func (o *OpinionScore) OverallSentiment() float64 {
	return (o.Trust + o.Respect + o.Affection) / 3
}

// Clone returns a deep copy for read-only snapshots.
func (o *OpinionScore) Clone() *OpinionScore {
	cp := *o
	cp.NotableEvents = append([]NotableEvent(nil), o.NotableEvents...)
	return &cp
}

// Delta is a bounded adjustment to one opinion. Each dimension moves
// independently; a delta never overwrites the score outright.
type Delta struct {
	Trust     float64 `json:"trust"`
	Respect   float64 `json:"respect"`
	Affection float64 `json:"affection"`
	Summary   string  `json:"summary,omitempty"`
	Notable   bool    `json:"notable,omitempty"`
}

// Config tunes ledger behavior.
type Config struct {
	DeltaCap      float64 // max magnitude applied per dimension per event
	NotableCap    int     // max retained notable events per entity
	NotableMinAbs float64 // |delta| on any dimension that makes an event notable
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DeltaCap:      20,
		NotableCap:    10,
		NotableMinAbs: 15,
	}
}

// Ledger applies bounded opinion deltas. It holds no opinion state itself:
// opinions live inside each agent's emotional state and reach the ledger only
// through the owning agent's serialized mutation path.
type Ledger struct {
	cfg    Config
	logger *zap.Logger
}

// NewLedger creates a ledger with the given config (zero value → defaults).
func NewLedger(cfg Config, logger *zap.Logger) *Ledger {
	if cfg.DeltaCap == 0 {
		cfg = DefaultConfig()
	}
	return &Ledger{cfg: cfg, logger: logger}
}

// NewOpinion returns a neutral opinion for a first interaction.
func NewOpinion(entityID string, entityType EntityType) *OpinionScore {
	return &OpinionScore{EntityID: entityID, EntityType: entityType}
}

// Apply adjusts the opinion in place with each dimension's delta capped and
// the result clamped to score bounds. Notable deltas append a capped history
// entry, oldest pruned first.
func (l *Ledger) Apply(op *OpinionScore, d Delta, at time.Time) {
	limit := l.cfg.DeltaCap
	applied := Delta{
		Trust:     core.Clamp(d.Trust, -limit, limit),
		Respect:   core.Clamp(d.Respect, -limit, limit),
		Affection: core.Clamp(d.Affection, -limit, limit),
		Summary:   d.Summary,
		Notable:   d.Notable,
	}

	op.Trust = core.Clamp(op.Trust+applied.Trust, ScoreMin, ScoreMax)
	op.Respect = core.Clamp(op.Respect+applied.Respect, ScoreMin, ScoreMax)
	op.Affection = core.Clamp(op.Affection+applied.Affection, ScoreMin, ScoreMax)
	op.InteractionCount++
	op.LastInteraction = at

	if l.isNotable(applied) {
		op.NotableEvents = append(op.NotableEvents, NotableEvent{
			Summary:    applied.Summary,
			Delta:      applied,
			OccurredAt: at,
		})
		if len(op.NotableEvents) > l.cfg.NotableCap {
			op.NotableEvents = op.NotableEvents[len(op.NotableEvents)-l.cfg.NotableCap:]
		}
		l.logger.Debug("notable relationship event",
			zap.String("entity", op.EntityID),
			zap.String("summary", applied.Summary),
			zap.Float64("sentiment", op.OverallSentiment()))
	}
}

// isNotable reports whether a delta is explicitly flagged or large enough on
// any dimension to be remembered.
func (l *Ledger) isNotable(d Delta) bool {
	if d.Notable {
		return true
	}
	abs := func(v float64) float64 {
		if v < 0 {
			return -v
		}
		return v
	}
	return abs(d.Trust) >= l.cfg.NotableMinAbs ||
		abs(d.Respect) >= l.cfg.NotableMinAbs ||
		abs(d.Affection) >= l.cfg.NotableMinAbs
}
