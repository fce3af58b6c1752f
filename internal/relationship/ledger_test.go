package relationship

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNegativeEventCappedAtTwenty(t *testing.T) {
	l := NewLedger(DefaultConfig(), zap.NewNop())
	op := &OpinionScore{EntityID: "peer-1", EntityType: EntityMinion, Trust: 80, Respect: 80, Affection: 80}

	// A harsher delta than the cap allows on every dimension.
	l.Apply(op, Delta{Trust: -45, Respect: -45, Affection: -45, Summary: "public insult"}, time.Now())

	if op.Trust != 60 || op.Respect != 60 || op.Affection != 60 {
		t.Errorf("got %.0f/%.0f/%.0f, want 60/60/60", op.Trust, op.Respect, op.Affection)
	}
	if got := op.OverallSentiment(); got != 60 {
		t.Errorf("overall sentiment: got %.2f, want 60", got)
	}
	if len(op.NotableEvents) != 1 {
		t.Errorf("got %d notable events, want 1", len(op.NotableEvents))
	}
	if op.InteractionCount != 1 {
		t.Errorf("interaction count: got %d, want 1", op.InteractionCount)
	}
}

func TestScoresClampedToBounds(t *testing.T) {
	l := NewLedger(DefaultConfig(), zap.NewNop())
	op := &OpinionScore{EntityID: "peer-1", Trust: 95, Respect: -95, Affection: 0}

	l.Apply(op, Delta{Trust: 20, Respect: -20}, time.Now())

	if op.Trust != ScoreMax {
		t.Errorf("trust: got %.2f, want %.2f", op.Trust, ScoreMax)
	}
	if op.Respect != ScoreMin {
		t.Errorf("respect: got %.2f, want %.2f", op.Respect, ScoreMin)
	}
}

func TestNotableHistoryCapOldestPruned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NotableCap = 3
	l := NewLedger(cfg, zap.NewNop())
	op := NewOpinion("peer-1", EntityMinion)

	at := time.Now()
	summaries := []string{"a", "b", "c", "d", "e"}
	for _, s := range summaries {
		l.Apply(op, Delta{Trust: 1, Summary: s, Notable: true}, at)
	}

	if len(op.NotableEvents) != 3 {
		t.Fatalf("got %d notable events, want 3", len(op.NotableEvents))
	}
	want := []string{"c", "d", "e"}
	for i, ne := range op.NotableEvents {
		if ne.Summary != want[i] {
			t.Errorf("notable[%d]: got %q, want %q", i, ne.Summary, want[i])
		}
	}
}

func TestSmallDeltaNotNotable(t *testing.T) {
	l := NewLedger(DefaultConfig(), zap.NewNop())
	op := NewOpinion("peer-1", EntityUser)

	l.Apply(op, Delta{Trust: 2, Affection: 1, Summary: "small talk"}, time.Now())

	if len(op.NotableEvents) != 0 {
		t.Errorf("got %d notable events for a small delta, want 0", len(op.NotableEvents))
	}
}

func TestSentimentAlwaysDerived(t *testing.T) {
	l := NewLedger(DefaultConfig(), zap.NewNop())
	op := NewOpinion("peer-1", EntityUser)

	l.Apply(op, Delta{Trust: 9, Respect: 3, Affection: 6}, time.Now())
	if got := op.OverallSentiment(); got != 6 {
		t.Errorf("sentiment after first delta: got %.2f, want 6", got)
	}
	l.Apply(op, Delta{Trust: -9, Respect: -3, Affection: -6}, time.Now())
	if got := op.OverallSentiment(); got != 0 {
		t.Errorf("sentiment after reversal: got %.2f, want 0", got)
	}
}
