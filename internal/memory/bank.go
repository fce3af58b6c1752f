package memory

import (
	"sync"
	"time"

	"github.com/varkas/minion-mind/internal/core"
)

// Config tunes a memory bank. Zero values fall back to defaults.
type Config struct {
	WorkingCapacity    int           `json:"working_capacity"`
	ShortTermTTL       time.Duration `json:"short_term_ttl"`
	PromotionThreshold float64       `json:"promotion_threshold"`
	RetentionFloor     float64       `json:"retention_floor"`
	DecayHalfLife      time.Duration `json:"decay_half_life"`

	// ChargeShield protects emotionally loaded memories: records whose
	// |charge| meets it are never forgotten, whatever their salience.
	ChargeShield float64 `json:"charge_shield"`

	// RareAccessMax is the access count at or below which a record counts as
	// rarely accessed for forgetting purposes.
	RareAccessMax int `json:"rare_access_max"`

	MiningWindow         time.Duration `json:"mining_window"`
	MiningMinOccurrences int           `json:"mining_min_occurrences"`

	Retrieval RetrievalWeights `json:"-"`
}

// DefaultBankConfig returns the documented defaults.
func DefaultBankConfig() Config {
	return Config{
		WorkingCapacity:      7,
		ShortTermTTL:         30 * time.Minute,
		PromotionThreshold:   0.6,
		RetentionFloor:       0.25,
		DecayHalfLife:        72 * time.Hour,
		ChargeShield:         0.6,
		RareAccessMax:        2,
		MiningWindow:         time.Hour,
		MiningMinOccurrences: 2,
		Retrieval:            DefaultRetrievalWeights(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultBankConfig()
	if c.WorkingCapacity <= 0 {
		c.WorkingCapacity = d.WorkingCapacity
	}
	if c.ShortTermTTL <= 0 {
		c.ShortTermTTL = d.ShortTermTTL
	}
	if c.PromotionThreshold <= 0 {
		c.PromotionThreshold = d.PromotionThreshold
	}
	if c.RetentionFloor <= 0 {
		c.RetentionFloor = d.RetentionFloor
	}
	if c.DecayHalfLife <= 0 {
		c.DecayHalfLife = d.DecayHalfLife
	}
	if c.ChargeShield <= 0 {
		c.ChargeShield = d.ChargeShield
	}
	if c.RareAccessMax <= 0 {
		c.RareAccessMax = d.RareAccessMax
	}
	if c.MiningWindow <= 0 {
		c.MiningWindow = d.MiningWindow
	}
	if c.MiningMinOccurrences <= 0 {
		c.MiningMinOccurrences = d.MiningMinOccurrences
	}
	if c.Retrieval == (RetrievalWeights{}) {
		c.Retrieval = d.Retrieval
	}
	return c
}

// Stats is a read-only size summary across layers.
type Stats struct {
	AgentID    string `json:"agent_id"`
	Working    int    `json:"working"`
	ShortTerm  int    `json:"short_term"`
	Episodic   int    `json:"episodic"`
	Concepts   int    `json:"concepts"`
	Procedural int    `json:"procedural"`
}

// Bank is the five-layer memory of a single agent. The bank mutex is the
// per-agent serialization point: event ingestion and background consolidation
// both take it, so neither sees the other mid-write.
type Bank struct {
	agentID string

	mu         sync.Mutex
	cfg        Config
	working    *workingSet
	short      *shortTerm
	episodic   *episodicStore
	semantic   *semanticGraph
	procedural *proceduralStore
	lastSweep  time.Time
}

// NewBank creates an empty bank for the agent.
func NewBank(agentID string, cfg Config, now time.Time) *Bank {
	cfg = cfg.withDefaults()
	return &Bank{
		agentID:    agentID,
		cfg:        cfg,
		working:    newWorkingSet(cfg.WorkingCapacity),
		short:      newShortTerm(cfg.ShortTermTTL),
		episodic:   newEpisodicStore(),
		semantic:   newSemanticGraph(),
		procedural: newProceduralStore(),
		lastSweep:  now,
	}
}

// Ingest records a new observation into working memory. A record squeezed out
// of working memory drops into short-term, where it awaits promotion or
// expiry. Returns the new record.
func (b *Bank) Ingest(content string, salience, charge float64, now time.Time) (*Record, error) {
	if content == "" {
		return nil, core.Validationf("empty memory content")
	}
	if salience < 0 || salience > 1 {
		return nil, core.Validationf("salience %.2f outside [0,1]", salience)
	}

	rec := NewRecord(b.agentID, content, salience, core.Clamp(charge, -1, 1), now)
	b.mu.Lock()
	defer b.mu.Unlock()
	if evicted := b.working.add(rec); evicted != nil {
		b.short.add(evicted, now)
	}
	return rec, nil
}

// SeedEpisodic writes a record straight into the episodic store, bypassing
// the working and short-term layers. Used for restored archives and tests.
func (b *Bank) SeedEpisodic(rec *Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.episodic.add(rec)
}

// Retrieve returns up to k episodic records ranked against the query.
func (b *Bank) Retrieve(query string, queryEmb []float32, k int, now time.Time) []Scored {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.episodic.retrieve(query, queryEmb, k, now, b.cfg.Retrieval)
}

// Concepts returns up to k semantic concepts matching the query.
func (b *Bank) Concepts(query string, queryEmb []float32, k int) []*Concept {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.semantic.lookup(query, queryEmb, k)
}

// UnembeddedConcepts returns, per concept still lacking a vector, the text
// it should be embedded under.
func (b *Bank) UnembeddedConcepts() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string)
	for _, name := range b.semantic.unembedded() {
		out[name] = b.semantic.get(name).EmbedText()
	}
	return out
}

// SetConceptEmbedding attaches a vector to a concept. Unknown names are
// ignored; the concept may have been forgotten since the embed call began.
func (b *Bank) SetConceptEmbedding(name string, emb []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c := b.semantic.get(name); c != nil {
		c.Embedding = emb
	}
}

// AllConcepts returns every semantic concept, for graph synchronization.
func (b *Bank) AllConcepts() []*Concept {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.semantic.all()
}

// ObserveOutcome updates the procedural pattern for a task signature.
func (b *Bank) ObserveOutcome(signature string, success bool, outcome string, now time.Time) *Pattern {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.procedural.observe(signature, success, outcome, now)
}

// Pattern returns the procedural pattern for the signature, or nil.
func (b *Bank) Pattern(signature string) *Pattern {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.procedural.get(signature)
}

// WorkingSnapshot returns the current attention set, oldest first.
func (b *Bank) WorkingSnapshot() []*Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.working.snapshot()
}

// Stats reports layer sizes.
func (b *Bank) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		AgentID:    b.agentID,
		Working:    b.working.size(),
		ShortTerm:  b.short.size(),
		Episodic:   b.episodic.size(),
		Concepts:   b.semantic.size(),
		Procedural: b.procedural.size(),
	}
}
