// Package autonomy decides when an agent should reach out on its own. An
// evaluation that produces no plan is a true negative, not an error.
package autonomy

import (
	"fmt"
	"time"

	"github.com/varkas/minion-mind/internal/core"
	"github.com/varkas/minion-mind/internal/mood"
	"go.uber.org/zap"
)

// Goal is an agent objective feeding the urgency score.
type Goal struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Priority    float64 `json:"priority"` // [0,1]
	TargetID    string  `json:"target_id,omitempty"`
	ChannelID   string  `json:"channel_id,omitempty"`
}

// CommPlan is an approved intention to message someone. It still passes the
// safeguard gate like any other outbound message.
type CommPlan struct {
	Recipients    []string `json:"recipients"`
	ChannelID     string   `json:"channel_id"`
	Purpose       string   `json:"purpose"`
	Opening       string   `json:"opening"`
	ExpectedTurns int      `json:"expected_turns"`
	Urgency       float64  `json:"urgency"`
}

// Weights blend the urgency inputs. They should sum to 1.
type Weights struct {
	Mood         float64 `json:"mood"`
	Goals        float64 `json:"goals"`
	Relationship float64 `json:"relationship"`
}

// Config tunes the decision engine.
type Config struct {
	// Threshold is the urgency above which a plan is produced.
	Threshold float64       `json:"threshold"`
	Weights   Weights       `json:"weights"`
	Cooldown  time.Duration `json:"cooldown"` // recent contact suppresses relationship pull

	// MinSentiment is the overall sentiment a contact needs before the
	// agent feels pulled to reconnect.
	MinSentiment float64 `json:"min_sentiment"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.65,
		Weights:      Weights{Mood: 0.35, Goals: 0.4, Relationship: 0.25},
		Cooldown:     30 * time.Minute,
		MinSentiment: 40,
	}
}

// Decider computes urgency and emits plans. The liveness callback is checked
// right before a plan is returned so an evaluation racing a despawn never
// emits for a dead agent.
type Decider struct {
	cfg      Config
	liveness func(agentID string) bool
	logger   *zap.Logger
}

// NewDecider creates a decider. A nil liveness callback means always live.
func NewDecider(cfg Config, liveness func(agentID string) bool, logger *zap.Logger) *Decider {
	if cfg.Threshold == 0 {
		cfg = DefaultConfig()
	}
	return &Decider{cfg: cfg, liveness: liveness, logger: logger}
}

// Evaluate scores the urge to communicate. Appropriateness in [0,1] scales
// the whole score down, so a socially wrong moment suppresses even a strong
// urge. Below the threshold it returns (nil, nil).
func (d *Decider) Evaluate(agentID string, st mood.EmotionalState, goals []Goal, lastContact map[string]time.Time, appropriateness float64, now time.Time) (*CommPlan, error) {
	if appropriateness < 0 || appropriateness > 1 {
		return nil, core.Validationf("appropriateness %.2f outside [0,1]", appropriateness)
	}

	pressure := moodPressure(st)
	topGoal, goalScore := strongestGoal(goals)
	contact, pull := d.relationshipPull(st, lastContact, now)

	w := d.cfg.Weights
	urgency := (w.Mood*pressure + w.Goals*goalScore + w.Relationship*pull) * appropriateness
	if urgency <= d.cfg.Threshold {
		return nil, nil
	}

	plan := d.buildPlan(st, topGoal, contact, urgency)
	if plan == nil {
		// Urgency without anyone to talk to: nothing to do.
		return nil, nil
	}

	if d.liveness != nil && !d.liveness(agentID) {
		d.logger.Debug("plan dropped, agent no longer live", zap.String("agent", agentID))
		return nil, nil
	}

	d.logger.Info("autonomous plan produced",
		zap.String("agent", agentID),
		zap.Float64("urgency", urgency),
		zap.Strings("recipients", plan.Recipients))
	return plan, nil
}

// moodPressure reads the urge to socialize out of the current mood.
func moodPressure(st mood.EmotionalState) float64 {
	return core.Clamp(0.4*st.Mood.Sociability+0.35*st.Mood.Arousal+0.25*st.Stress, 0, 1)
}

func strongestGoal(goals []Goal) (*Goal, float64) {
	var top *Goal
	for i := range goals {
		if top == nil || goals[i].Priority > top.Priority {
			top = &goals[i]
		}
	}
	if top == nil {
		return nil, 0
	}
	return top, core.Clamp(top.Priority, 0, 1)
}

// relationshipPull finds the best-liked contact the agent has not spoken to
// recently. Pull grows with sentiment and with time since last contact.
func (d *Decider) relationshipPull(st mood.EmotionalState, lastContact map[string]time.Time, now time.Time) (string, float64) {
	best, bestPull := "", 0.0
	for id, op := range st.Opinions {
		sentiment := op.OverallSentiment()
		if sentiment < d.cfg.MinSentiment {
			continue
		}
		last, known := lastContact[id]
		if known && now.Sub(last) < d.cfg.Cooldown {
			continue
		}
		staleness := 1.0
		if known {
			staleness = core.Clamp(now.Sub(last).Hours()/24, 0, 1)
		}
		pull := (sentiment / 100) * staleness
		if pull > bestPull {
			best, bestPull = id, pull
		}
	}
	return best, bestPull
}

func (d *Decider) buildPlan(st mood.EmotionalState, goal *Goal, contact string, urgency float64) *CommPlan {
	plan := &CommPlan{Urgency: urgency, ExpectedTurns: 2 + int(urgency*4)}

	switch {
	case goal != nil && goal.TargetID != "":
		plan.Recipients = []string{goal.TargetID}
		plan.ChannelID = goal.ChannelID
		plan.Purpose = goal.Description
		plan.Opening = fmt.Sprintf("Hey, about %s - got a minute?", goal.Description)
	case contact != "":
		plan.Recipients = []string{contact}
		plan.Purpose = "reconnect"
		plan.Opening = "Hey, been a while. How have you been?"
	default:
		return nil
	}
	return plan
}
