package memory

import (
	"time"

	"github.com/google/uuid"
)

// Layer identifies which memory store a record lives in. Promotion between
// layers is one-directional within a consolidation pass: a record is never
// demoted mid-pass.
type Layer string

const (
	LayerWorking    Layer = "working"
	LayerShortTerm  Layer = "short_term"
	LayerEpisodic   Layer = "episodic"
	LayerSemantic   Layer = "semantic"
	LayerProcedural Layer = "procedural"
)

// Record is a single memory. Salience drives promotion and retention; charge
// is the emotional weight that protects a memory from forgetting.
type Record struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Layer        Layer     `json:"layer"`
	Content      string    `json:"content"`
	Salience     float64   `json:"salience"`
	Charge       float64   `json:"charge"`
	Keywords     []string  `json:"keywords,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"` // short-term only
}

// NewRecord builds a working-layer record with a fresh id.
func NewRecord(agentID, content string, salience, charge float64, at time.Time) *Record {
	return &Record{
		ID:           uuid.New().String(),
		AgentID:      agentID,
		Layer:        LayerWorking,
		Content:      content,
		Salience:     salience,
		Charge:       charge,
		Keywords:     extractKeywords(content),
		CreatedAt:    at,
		LastAccessed: at,
	}
}

// touch records an access.
func (r *Record) touch(at time.Time) {
	r.LastAccessed = at
	r.AccessCount++
}
