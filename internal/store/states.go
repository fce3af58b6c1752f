package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/varkas/minion-mind/internal/mood"
)

// SaveState upserts an agent's emotional-state snapshot. The write is
// version guarded: a snapshot older than what is stored is dropped, so
// concurrent writers can never roll the row backwards.
func (s *Store) SaveState(ctx context.Context, st mood.EmotionalState) (bool, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return false, fmt.Errorf("marshal state %s: %w", st.AgentID, err)
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO emotional_states (agent_id, version, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id) DO UPDATE SET
			version = EXCLUDED.version,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
		WHERE emotional_states.version < EXCLUDED.version`,
		st.AgentID, st.Version, data, st.LastUpdated,
	)
	if err != nil {
		return false, fmt.Errorf("save state %s: %w", st.AgentID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// LoadState reads an agent's last persisted snapshot. Missing rows return
// (nil, nil).
func (s *Store) LoadState(ctx context.Context, agentID string) (*mood.EmotionalState, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT state FROM emotional_states WHERE agent_id = $1`, agentID).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", agentID, err)
	}
	var st mood.EmotionalState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", agentID, err)
	}
	return &st, nil
}

// DeleteState removes an agent's snapshot, typically on despawn.
func (s *Store) DeleteState(ctx context.Context, agentID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM emotional_states WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("delete state %s: %w", agentID, err)
	}
	return nil
}
