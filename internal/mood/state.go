package mood

import (
	"time"

	"github.com/varkas/minion-mind/internal/relationship"
)

// EmotionalState is the full internal state of one minion. Exactly one exists
// per agent; it is created at spawn, mutated only by the Engine under the
// agent's serialization, and destroyed at despawn. Version strictly increases
// on every mutation.
type EmotionalState struct {
	AgentID     string                                   `json:"agent_id"`
	Mood        MoodVector                               `json:"mood"`
	Energy      float64                                  `json:"energy"`
	Stress      float64                                  `json:"stress"`
	Opinions    map[string]*relationship.OpinionScore    `json:"opinions"`
	LastUpdated time.Time                                `json:"last_updated"`
	Version     int64                                    `json:"version"`
}

// Clone returns a deep copy safe to hand out as a read-only snapshot.
func (s *EmotionalState) Clone() EmotionalState {
	cp := *s
	cp.Opinions = make(map[string]*relationship.OpinionScore, len(s.Opinions))
	for id, op := range s.Opinions {
		cp.Opinions[id] = op.Clone()
	}
	return cp
}

// Opinion returns the opinion toward entityID, creating a neutral one on
// first contact. Caller must hold the agent's serialization.
func (s *EmotionalState) Opinion(entityID string, entityType relationship.EntityType) *relationship.OpinionScore {
	if op, ok := s.Opinions[entityID]; ok {
		return op
	}
	op := relationship.NewOpinion(entityID, entityType)
	s.Opinions[entityID] = op
	return op
}
