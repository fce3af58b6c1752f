package mood

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/varkas/minion-mind/internal/bus"
	"github.com/varkas/minion-mind/internal/core"
	"github.com/varkas/minion-mind/internal/relationship"
	"go.uber.org/zap"
)

// Config tunes the engine.
type Config struct {
	// Alpha is the default momentum coefficient: how much of a raw delta is
	// applied versus carried momentum from the previous applied delta.
	Alpha float64

	Bounds         Bounds
	Baseline       MoodVector
	BaselineEnergy float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.3,
		Bounds:         DefaultBounds(),
		Baseline:       MoodVector{Arousal: 0.2, Dominance: 0.5, Curiosity: 0.3, Creativity: 0.3, Sociability: 0.4},
		BaselineEnergy: 0.8,
	}
}

// ErrAgentNotFound is returned for operations on an unknown agent.
var ErrAgentNotFound = fmt.Errorf("agent not found")

// slot is the owned-state container for one agent. All mutation goes through
// the slot mutex, so exactly one mutation per agent is in flight at a time
// while different agents never block each other.
type slot struct {
	mu          sync.Mutex
	state       *EmotionalState
	prevApplied MoodVector
	alpha       float64
	baseline    MoodVector
}

// Engine owns every agent's EmotionalState and is the only writer.
type Engine struct {
	cfg        Config
	classifier ImpactClassifier
	ledger     *relationship.Ledger

	mu    sync.RWMutex
	slots map[string]*slot

	logger *zap.Logger
}

// NewEngine creates an engine. A nil classifier falls back to the
// deterministic rule-based one.
func NewEngine(cfg Config, classifier ImpactClassifier, ledger *relationship.Ledger, logger *zap.Logger) *Engine {
	if cfg.Alpha == 0 {
		cfg = DefaultConfig()
	}
	if classifier == nil {
		classifier = NewRuleClassifier()
	}
	return &Engine{
		cfg:        cfg,
		classifier: classifier,
		ledger:     ledger,
		slots:      make(map[string]*slot),
		logger:     logger,
	}
}

// Spawn creates the emotional state for a new agent. Alpha 0 uses the
// configured default.
func (e *Engine) Spawn(agentID string, alpha float64) (EmotionalState, error) {
	if agentID == "" {
		return EmotionalState{}, core.Validationf("empty agent id")
	}
	if alpha < 0 || alpha > 1 {
		return EmotionalState{}, core.Validationf("alpha %.2f outside [0,1]", alpha)
	}
	if alpha == 0 {
		alpha = e.cfg.Alpha
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.slots[agentID]; ok {
		return EmotionalState{}, core.Validationf("agent %s already spawned", agentID)
	}

	st := &EmotionalState{
		AgentID:     agentID,
		Mood:        e.cfg.Baseline,
		Energy:      e.cfg.BaselineEnergy,
		Opinions:    make(map[string]*relationship.OpinionScore),
		LastUpdated: time.Now(),
		Version:     1,
	}
	e.slots[agentID] = &slot{state: st, alpha: alpha, baseline: e.cfg.Baseline}
	e.logger.Info("emotional state spawned", zap.String("agent", agentID), zap.Float64("alpha", alpha))
	return st.Clone(), nil
}

// Despawn destroys an agent's state.
func (e *Engine) Despawn(agentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.slots[agentID]; !ok {
		return ErrAgentNotFound
	}
	delete(e.slots, agentID)
	e.logger.Info("emotional state despawned", zap.String("agent", agentID))
	return nil
}

// Agents returns the ids of all live agents.
func (e *Engine) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.slots))
	for id := range e.slots {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns a deep copy of the agent's current state.
func (e *Engine) Snapshot(agentID string) (EmotionalState, bool) {
	sl := e.slot(agentID)
	if sl == nil {
		return EmotionalState{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.state.Clone(), true
}

func (e *Engine) slot(agentID string) *slot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.slots[agentID]
}

// ApplyEvent classifies the event and applies its impact to the agent's
// state. The counterpart for the opinion adjustment is the event's actor,
// unless the agent itself acted.
func (e *Engine) ApplyEvent(agentID string, ev bus.Event, counterpartType relationship.EntityType) (EmotionalState, error) {
	im := e.classifier.Classify(ev)
	counterpart := ""
	if ev.ActorID != agentID {
		counterpart = ev.ActorID
	}
	return e.ApplyImpact(agentID, im, counterpart, counterpartType, ev.Timestamp)
}

// ApplyImpact applies one classified impact: momentum damping against the
// previous applied delta, clamping to bounds, opinion adjustment via the
// ledger, version bump. A fully zero impact leaves the state untouched, so
// only self-regulation ever moves a mood that receives no stimulus.
func (e *Engine) ApplyImpact(agentID string, im Impact, counterpartID string, counterpartType relationship.EntityType, at time.Time) (EmotionalState, error) {
	sl := e.slot(agentID)
	if sl == nil {
		return EmotionalState{}, ErrAgentNotFound
	}
	if im.IsZero() {
		sl.mu.Lock()
		defer sl.mu.Unlock()
		return sl.state.Clone(), nil
	}
	if at.IsZero() {
		at = time.Now()
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	st := sl.state

	if !im.Mood.IsZero() {
		applied := im.Mood.Blend(sl.prevApplied, sl.alpha)
		sl.prevApplied = applied
		st.Mood = st.Mood.Add(applied).Clamped(e.cfg.Bounds)
	}
	st.Energy = core.Clamp(st.Energy+im.Energy, 0, 1)
	st.Stress = core.Clamp(st.Stress+im.Stress, 0, 1)

	hasOpinion := im.Opinion.Trust != 0 || im.Opinion.Respect != 0 || im.Opinion.Affection != 0
	if counterpartID != "" && hasOpinion {
		op := st.Opinion(counterpartID, counterpartType)
		e.ledger.Apply(op, im.Opinion, at)
	}

	st.Version++
	st.LastUpdated = at

	e.logger.Debug("impact applied",
		zap.String("agent", agentID),
		zap.Int64("version", st.Version),
		zap.Float64("valence", st.Mood.Valence),
		zap.Float64("stress", st.Stress))

	return st.Clone(), nil
}

// Mutate runs fn against the agent's state if the caller's expected version
// still matches, bumping the version afterward. A stale expectation returns
// ErrVersionConflict; callers resolve it by re-reading and retrying.
func (e *Engine) Mutate(agentID string, expectedVersion int64, fn func(*EmotionalState)) (EmotionalState, error) {
	sl := e.slot(agentID)
	if sl == nil {
		return EmotionalState{}, ErrAgentNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.state.Version != expectedVersion {
		return EmotionalState{}, fmt.Errorf("agent %s at version %d, expected %d: %w",
			agentID, sl.state.Version, expectedVersion, core.ErrVersionConflict)
	}
	fn(sl.state)
	sl.state.Mood = sl.state.Mood.Clamped(e.cfg.Bounds)
	sl.state.Energy = core.Clamp(sl.state.Energy, 0, 1)
	sl.state.Stress = core.Clamp(sl.state.Stress, 0, 1)
	sl.state.Version++
	sl.state.LastUpdated = time.Now()
	return sl.state.Clone(), nil
}

// MutateLatest retries Mutate with the freshest version until it lands.
func (e *Engine) MutateLatest(agentID string, fn func(*EmotionalState)) (EmotionalState, error) {
	for {
		snap, ok := e.Snapshot(agentID)
		if !ok {
			return EmotionalState{}, ErrAgentNotFound
		}
		st, err := e.Mutate(agentID, snap.Version, fn)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, core.ErrVersionConflict) {
			return EmotionalState{}, err
		}
	}
}
