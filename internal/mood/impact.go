package mood

import (
	"strings"

	"github.com/varkas/minion-mind/internal/bus"
	"github.com/varkas/minion-mind/internal/relationship"
)

// Impact is the classified effect of one interaction event: a raw mood delta
// plus energy/stress shifts and an opinion adjustment toward the counterpart.
type Impact struct {
	Mood     MoodVector         `json:"mood"`
	Energy   float64            `json:"energy"`
	Stress   float64            `json:"stress"`
	Opinion  relationship.Delta `json:"opinion"`
	Salience float64            `json:"salience"`
}

// IsZero reports whether the impact moves nothing.
func (im Impact) IsZero() bool {
	return im.Mood.IsZero() && im.Energy == 0 && im.Stress == 0 &&
		im.Opinion.Trust == 0 && im.Opinion.Respect == 0 && im.Opinion.Affection == 0
}

// ImpactClassifier turns an event into a raw impact. The production system
// may back this with the language model; RuleClassifier is the deterministic
// implementation used by default and in tests.
type ImpactClassifier interface {
	Classify(ev bus.Event) Impact
}

// RuleClassifier classifies events with fixed per-kind profiles plus a small
// sentiment lexicon for message content.
type RuleClassifier struct{}

// NewRuleClassifier returns the deterministic classifier.
func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

// Classify implements ImpactClassifier.
func (c *RuleClassifier) Classify(ev bus.Event) Impact {
	switch p := ev.Payload.(type) {
	case bus.MessagePayload:
		return c.classifyMessage(ev.Kind, p)
	case bus.ToolPayload:
		if ev.Kind == bus.KindToolFailed {
			return FailedInteractionImpact()
		}
		return Impact{
			Mood:     MoodVector{Valence: 0.1, Dominance: 0.05, Curiosity: 0.05},
			Energy:   -0.02,
			Salience: 0.4,
		}
	case bus.ObservationPayload:
		return Impact{
			Mood:     MoodVector{Curiosity: 0.1 * (0.5 + p.Importance)},
			Salience: p.Importance,
		}
	}
	return Impact{}
}

func (c *RuleClassifier) classifyMessage(kind bus.Kind, p bus.MessagePayload) Impact {
	sentiment := scoreSentiment(p.Content)

	if kind == bus.KindMessageSent {
		// Speaking costs a little energy and vents a little stress.
		return Impact{Energy: -0.02, Stress: -0.02, Salience: 0.2}
	}

	im := Impact{
		Mood: MoodVector{
			Valence:     0.3 * sentiment,
			Arousal:     0.05,
			Sociability: 0.08,
		},
		Energy:   -0.01,
		Salience: 0.3 + 0.3*abs(sentiment),
		Opinion: relationship.Delta{
			Trust:     4 * sentiment,
			Respect:   2 * sentiment,
			Affection: 5 * sentiment,
		},
	}
	if sentiment < -0.5 {
		im.Stress = 0.1
		im.Opinion.Summary = "hostile message"
	} else if sentiment > 0.5 {
		im.Opinion.Summary = "warm message"
	}
	return im
}

// FailedInteractionImpact is the distinct profile applied when a tool call or
// the external completion call fails or times out.
func FailedInteractionImpact() Impact {
	return Impact{
		Mood:     MoodVector{Valence: -0.15, Dominance: -0.1, Arousal: 0.05},
		Stress:   0.1,
		Energy:   -0.03,
		Salience: 0.5,
	}
}

// scoreSentiment returns a crude [-1, 1] sentiment for message text.
func scoreSentiment(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	var score float64
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"")
		if positiveWords[w] {
			score++
		} else if negativeWords[w] {
			score--
		}
	}
	if score > 3 {
		score = 3
	}
	if score < -3 {
		score = -3
	}
	return score / 3
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var positiveWords = map[string]bool{
	"thanks": true, "thank": true, "great": true, "good": true, "love": true,
	"awesome": true, "nice": true, "well": true, "brilliant": true, "happy": true,
	"glad": true, "perfect": true, "excellent": true, "helpful": true, "yes": true,
}

var negativeWords = map[string]bool{
	"hate": true, "bad": true, "awful": true, "terrible": true, "wrong": true,
	"stupid": true, "useless": true, "angry": true, "no": true, "broken": true,
	"fail": true, "failed": true, "annoying": true, "worst": true, "shut": true,
}
