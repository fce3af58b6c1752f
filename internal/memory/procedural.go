package memory

import "time"

// Pattern records how a kind of task has gone historically. The signature is
// a normalized task descriptor, for example a tool name.
type Pattern struct {
	Signature   string    `json:"signature"`
	Attempts    int       `json:"attempts"`
	Successes   int       `json:"successes"`
	LastOutcome string    `json:"last_outcome"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SuccessRate is 0 for an unattempted pattern.
func (p *Pattern) SuccessRate() float64 {
	if p.Attempts == 0 {
		return 0
	}
	return float64(p.Successes) / float64(p.Attempts)
}

// proceduralStore accumulates task-outcome statistics.
type proceduralStore struct {
	patterns map[string]*Pattern
}

func newProceduralStore() *proceduralStore {
	return &proceduralStore{patterns: make(map[string]*Pattern)}
}

// observe folds one outcome into the pattern for the signature.
func (p *proceduralStore) observe(signature string, success bool, outcome string, at time.Time) *Pattern {
	pat, ok := p.patterns[signature]
	if !ok {
		pat = &Pattern{Signature: signature}
		p.patterns[signature] = pat
	}
	pat.Attempts++
	if success {
		pat.Successes++
	}
	pat.LastOutcome = outcome
	pat.UpdatedAt = at
	return pat
}

func (p *proceduralStore) get(signature string) *Pattern { return p.patterns[signature] }

func (p *proceduralStore) size() int { return len(p.patterns) }

func (p *proceduralStore) all() []*Pattern {
	out := make([]*Pattern, 0, len(p.patterns))
	for _, pat := range p.patterns {
		out = append(out, pat)
	}
	return out
}
