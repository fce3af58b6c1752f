package safeguard

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// LoopConfig tunes degenerate-pattern detection.
type LoopConfig struct {
	HistorySize int     `json:"history_size"`
	Threshold   float64 `json:"threshold"`
}

// DefaultLoopConfig returns the documented defaults.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{HistorySize: 12, Threshold: 0.7}
}

type sent struct {
	agentID string
	norm    string
	tokens  map[string]bool
	heat    float64
	at      time.Time
}

// LoopDetector scores candidate sends against a channel's recent history for
// known degenerate shapes: near-duplicate echo, ping-pong repetition,
// escalating intensity and a stagnant topic. History only grows through
// RecordSent, so blocked attempts never feed the pattern they triggered.
type LoopDetector struct {
	cfg LoopConfig

	mu      sync.Mutex
	history map[string][]sent // channel id -> recent sends, oldest first
}

// NewLoopDetector creates a detector.
func NewLoopDetector(cfg LoopConfig) *LoopDetector {
	if cfg.HistorySize <= 0 || cfg.Threshold <= 0 {
		cfg = DefaultLoopConfig()
	}
	return &LoopDetector{cfg: cfg, history: make(map[string][]sent)}
}

// Score rates the candidate in [0,1] and names the dominant pattern.
func (d *LoopDetector) Score(agentID, channelID, content string) (float64, string) {
	cand := newSent(agentID, content, time.Time{})

	d.mu.Lock()
	hist := d.history[channelID]
	d.mu.Unlock()

	if len(hist) == 0 {
		return 0, ""
	}

	best, reason := 0.0, ""
	note := func(score float64, name string) {
		if score > best {
			best, reason = score, name
		}
	}
	note(d.echoScore(hist, cand), "near-duplicate echo")
	note(d.pingPongScore(hist, cand), "ping-pong repetition")
	note(d.escalationScore(hist, cand), "escalating intensity")
	note(d.stagnantScore(hist, cand), "stagnant topic")
	return best, reason
}

// Exceeds reports whether the candidate's score crosses the threshold.
func (d *LoopDetector) Exceeds(agentID, channelID, content string) (bool, float64, string) {
	score, reason := d.Score(agentID, channelID, content)
	return score >= d.cfg.Threshold, score, reason
}

// RecordSent appends an approved send to the channel history.
func (d *LoopDetector) RecordSent(agentID, channelID, content string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hist := append(d.history[channelID], newSent(agentID, content, at))
	if len(hist) > d.cfg.HistorySize {
		hist = hist[len(hist)-d.cfg.HistorySize:]
	}
	d.history[channelID] = hist
}

// echoScore: how often this agent already sent the same normalized content.
// Three prior copies saturate the scale.
func (d *LoopDetector) echoScore(hist []sent, cand sent) float64 {
	dup := 0
	for _, s := range hist {
		if s.agentID == cand.agentID && s.norm == cand.norm {
			dup++
		}
	}
	score := float64(dup) / 3
	if score > 1 {
		score = 1
	}
	return score
}

// pingPongScore: two agents strictly alternating while each repeats itself.
func (d *LoopDetector) pingPongScore(hist []sent, cand sent) float64 {
	if len(hist) < 3 {
		return 0
	}
	window := hist
	if len(window) > 6 {
		window = window[len(window)-6:]
	}
	seq := append(append([]sent{}, window...), cand)

	agents := map[string]bool{}
	for _, s := range seq {
		agents[s.agentID] = true
	}
	if len(agents) != 2 {
		return 0
	}
	for i := 1; i < len(seq); i++ {
		if seq[i].agentID == seq[i-1].agentID {
			return 0
		}
	}
	// Alternating pair; measure period-2 content repetition.
	matches := 0
	for i := 2; i < len(seq); i++ {
		if seq[i].norm == seq[i-2].norm {
			matches++
		}
	}
	return float64(matches) / float64(len(seq)-2)
}

// escalationScore: intensity rising monotonically over the agent's recent
// sends and again in the candidate.
func (d *LoopDetector) escalationScore(hist []sent, cand sent) float64 {
	var own []sent
	for _, s := range hist {
		if s.agentID == cand.agentID {
			own = append(own, s)
		}
	}
	if len(own) < 3 {
		return 0
	}
	own = own[len(own)-3:]
	prev := own[0].heat
	for _, s := range own[1:] {
		if s.heat <= prev {
			return 0
		}
		prev = s.heat
	}
	if cand.heat <= prev {
		return 0
	}
	return 0.5 + cand.heat/2
}

// stagnantScore: average keyword overlap with the recent channel history.
// Only meaningful once the conversation has some length.
func (d *LoopDetector) stagnantScore(hist []sent, cand sent) float64 {
	if len(hist) < 4 || len(cand.tokens) == 0 {
		return 0
	}
	window := hist
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	var total float64
	for _, s := range window {
		total += tokenOverlap(cand.tokens, s.tokens)
	}
	avg := total / float64(len(window))
	if avg < 0.8 {
		return 0
	}
	return avg
}

func newSent(agentID, content string, at time.Time) sent {
	norm := normalize(content)
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(norm) {
		if len(w) > 1 {
			tokens[w] = true
		}
	}
	return sent{agentID: agentID, norm: norm, tokens: tokens, heat: heat(content), at: at}
}

func normalize(content string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(content)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// heat estimates message intensity from caps and exclamation density.
func heat(content string) float64 {
	if content == "" {
		return 0
	}
	var upper, letters, bangs int
	for _, r := range content {
		switch {
		case unicode.IsUpper(r):
			upper++
			letters++
		case unicode.IsLetter(r):
			letters++
		case r == '!':
			bangs++
		}
	}
	h := 0.0
	if letters > 0 {
		h += float64(upper) / float64(letters)
	}
	h += float64(bangs) / 10
	if h > 1 {
		h = 1
	}
	return h
}

func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
