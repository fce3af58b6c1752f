package autonomy

import (
	"errors"
	"testing"
	"time"

	"github.com/varkas/minion-mind/internal/core"
	"github.com/varkas/minion-mind/internal/mood"
	"github.com/varkas/minion-mind/internal/relationship"
	"go.uber.org/zap"
)

func restlessState() mood.EmotionalState {
	return mood.EmotionalState{
		AgentID: "ada",
		Mood:    mood.MoodVector{Sociability: 1, Arousal: 1},
		Stress:  1,
	}
}

func TestBelowThresholdIsTrueNegative(t *testing.T) {
	d := NewDecider(DefaultConfig(), nil, zap.NewNop())

	st := mood.EmotionalState{
		AgentID: "ada",
		Mood:    mood.MoodVector{Arousal: 0.2, Sociability: 0.4},
	}
	plan, err := d.Evaluate("ada", st, nil, nil, 1, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if plan != nil {
		t.Fatalf("calm agent with no goals produced a plan: %+v", plan)
	}
}

func TestGoalDrivenPlan(t *testing.T) {
	d := NewDecider(DefaultConfig(), nil, zap.NewNop())

	goals := []Goal{
		{ID: "g1", Description: "the generator repair", Priority: 0.9, TargetID: "user-7", ChannelID: "ch-1"},
		{ID: "g2", Description: "inventory count", Priority: 0.2},
	}
	plan, err := d.Evaluate("ada", restlessState(), goals, nil, 1, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if plan == nil {
		t.Fatal("restless agent with an urgent goal produced no plan")
	}
	if len(plan.Recipients) != 1 || plan.Recipients[0] != "user-7" {
		t.Errorf("recipients: got %v, want [user-7]", plan.Recipients)
	}
	if plan.ChannelID != "ch-1" {
		t.Errorf("channel: got %s, want ch-1", plan.ChannelID)
	}
	if plan.Purpose != "the generator repair" {
		t.Errorf("purpose: got %q", plan.Purpose)
	}
	if plan.Opening == "" {
		t.Error("plan has no opening message")
	}
	if plan.ExpectedTurns < 2 {
		t.Errorf("expected turns: got %d, want >= 2", plan.ExpectedTurns)
	}
}

func TestAppropriatenessSuppressesUrgency(t *testing.T) {
	d := NewDecider(DefaultConfig(), nil, zap.NewNop())
	goals := []Goal{{ID: "g1", Description: "urgent thing", Priority: 0.9, TargetID: "user-7"}}

	// Same inputs as the goal-driven case, but it is a bad moment.
	plan, err := d.Evaluate("ada", restlessState(), goals, nil, 0.3, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if plan != nil {
		t.Fatalf("low appropriateness still produced a plan: %+v", plan)
	}
}

func TestLivenessCancelsPlan(t *testing.T) {
	d := NewDecider(DefaultConfig(), func(string) bool { return false }, zap.NewNop())
	goals := []Goal{{ID: "g1", Description: "urgent thing", Priority: 0.9, TargetID: "user-7"}}

	plan, err := d.Evaluate("ada", restlessState(), goals, nil, 1, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if plan != nil {
		t.Fatal("plan emitted for a despawned agent")
	}
}

func TestRelationshipPullReconnects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 0.5
	d := NewDecider(cfg, nil, zap.NewNop())
	now := time.Now()

	st := restlessState()
	st.Opinions = map[string]*relationship.OpinionScore{
		"friend": {EntityType: relationship.EntityUser, Trust: 80, Respect: 80, Affection: 80},
		"stranger": {EntityType: relationship.EntityUser, Trust: 5, Respect: 5, Affection: 5},
	}

	plan, err := d.Evaluate("ada", st, nil, nil, 1, now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if plan == nil {
		t.Fatal("no plan despite a well-liked, long-unseen contact")
	}
	if len(plan.Recipients) != 1 || plan.Recipients[0] != "friend" {
		t.Errorf("recipients: got %v, want [friend]", plan.Recipients)
	}
	if plan.Purpose != "reconnect" {
		t.Errorf("purpose: got %q, want reconnect", plan.Purpose)
	}

	// A recent conversation removes the pull.
	lastContact := map[string]time.Time{"friend": now.Add(-10 * time.Minute)}
	plan, err = d.Evaluate("ada", st, nil, lastContact, 1, now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if plan != nil {
		t.Fatalf("plan produced right after talking to the contact: %+v", plan)
	}
}

func TestEvaluateValidation(t *testing.T) {
	d := NewDecider(DefaultConfig(), nil, zap.NewNop())
	_, err := d.Evaluate("ada", restlessState(), nil, nil, 1.5, time.Now())
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}
