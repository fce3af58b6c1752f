package memory

import (
	"context"
	"sync"
	"time"

	"github.com/varkas/minion-mind/internal/core"
	"github.com/varkas/minion-mind/internal/memory/index"
	"go.uber.org/zap"
)

// Manager holds one Bank per live agent and wires the optional embedding
// path. Each bank is owned by its agent; the manager only maps ids to banks.
type Manager struct {
	cfg      Config
	embedder index.Embedder
	idx      index.Index

	mu    sync.RWMutex
	banks map[string]*Bank

	logger *zap.Logger
}

// NewManager creates a manager. Embedder and index are optional; nil
// disables vector similarity and retrieval falls back to keywords.
func NewManager(cfg Config, embedder index.Embedder, idx index.Index, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		embedder: embedder,
		idx:      idx,
		banks:    make(map[string]*Bank),
		logger:   logger,
	}
}

// Spawn creates an empty bank for the agent.
func (m *Manager) Spawn(agentID string) (*Bank, error) {
	if agentID == "" {
		return nil, core.Validationf("empty agent id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.banks[agentID]; ok {
		return nil, core.Validationf("agent %s already has a memory bank", agentID)
	}
	bank := NewBank(agentID, m.cfg, time.Now())
	m.banks[agentID] = bank
	m.logger.Info("memory bank spawned", zap.String("agent", agentID))
	return bank, nil
}

// Despawn drops the agent's bank.
func (m *Manager) Despawn(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.banks[agentID]; ok {
		delete(m.banks, agentID)
		m.logger.Info("memory bank despawned", zap.String("agent", agentID))
	}
}

// Bank returns the agent's bank, or nil.
func (m *Manager) Bank(agentID string) *Bank {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.banks[agentID]
}

// Agents returns the ids of all agents holding a bank.
func (m *Manager) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.banks))
	for id := range m.banks {
		ids = append(ids, id)
	}
	return ids
}

// Ingest writes an observation into the agent's working memory. When an
// embedder is wired, the record is embedded and upserted into the vector
// index; embedding failures are logged and the keyword path carries on.
func (m *Manager) Ingest(ctx context.Context, agentID, content string, salience, charge float64) (*Record, error) {
	bank := m.Bank(agentID)
	if bank == nil {
		return nil, core.Validationf("no memory bank for agent %s", agentID)
	}
	rec, err := bank.Ingest(content, salience, charge, time.Now())
	if err != nil {
		return nil, err
	}

	if m.embedder != nil {
		vecs, err := m.embedder.Embed(ctx, []string{content})
		if err != nil || len(vecs) == 0 {
			m.logger.Warn("embedding failed, keyword retrieval only",
				zap.String("agent", agentID), zap.Error(err))
			return rec, nil
		}
		rec.Embedding = vecs[0]
		if m.idx != nil {
			if err := m.idx.Upsert(ctx, rec.ID, rec.Embedding, map[string]string{
				"agent_id": agentID,
				"content":  content,
			}); err != nil {
				m.logger.Warn("vector index upsert failed", zap.String("record", rec.ID), zap.Error(err))
			}
		}
	}
	return rec, nil
}

// Retrieve ranks the agent's episodic memories against the query. The query
// is embedded when possible so records carrying embeddings compare by
// cosine; everything else compares by keywords.
func (m *Manager) Retrieve(ctx context.Context, agentID, query string, k int) ([]Scored, error) {
	bank := m.Bank(agentID)
	if bank == nil {
		return nil, core.Validationf("no memory bank for agent %s", agentID)
	}
	var queryEmb []float32
	if m.embedder != nil {
		if vecs, err := m.embedder.Embed(ctx, []string{query}); err == nil && len(vecs) > 0 {
			queryEmb = vecs[0]
		}
	}
	return bank.Retrieve(query, queryEmb, k, time.Now()), nil
}

// EmbedConcepts backfills vectors for concepts the mining pass created.
// Returns the number embedded; without an embedder concepts stay on the
// keyword path.
func (m *Manager) EmbedConcepts(ctx context.Context, agentID string) int {
	if m.embedder == nil {
		return 0
	}
	bank := m.Bank(agentID)
	if bank == nil {
		return 0
	}
	pending := bank.UnembeddedConcepts()
	if len(pending) == 0 {
		return 0
	}

	names := make([]string, 0, len(pending))
	texts := make([]string, 0, len(pending))
	for name, text := range pending {
		names = append(names, name)
		texts = append(texts, text)
	}
	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		m.logger.Warn("concept embedding failed",
			zap.String("agent", agentID), zap.Error(err))
		return 0
	}
	for i, name := range names {
		bank.SetConceptEmbedding(name, vecs[i])
	}
	return len(names)
}

// Stats reports layer sizes for every live bank.
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Stats, 0, len(m.banks))
	for _, b := range m.banks {
		out = append(out, b.Stats())
	}
	return out
}
