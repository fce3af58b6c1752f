package store

import (
	"context"
	"fmt"

	"github.com/varkas/minion-mind/internal/memory"
)

// ArchiveEpisode upserts one episodic record. Consolidation calls this for
// promoted records so an agent's durable memories survive restarts.
func (s *Store) ArchiveEpisode(ctx context.Context, rec *memory.Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO episodic_records
			(id, agent_id, content, salience, charge, keywords, created_at, last_accessed, access_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			salience = EXCLUDED.salience,
			last_accessed = EXCLUDED.last_accessed,
			access_count = EXCLUDED.access_count`,
		rec.ID, rec.AgentID, rec.Content, rec.Salience, rec.Charge,
		rec.Keywords, rec.CreatedAt, rec.LastAccessed, rec.AccessCount,
	)
	if err != nil {
		return fmt.Errorf("archive episode %s: %w", rec.ID, err)
	}
	return nil
}

// LoadEpisodes reads an agent's archived episodes, oldest first, for
// seeding a fresh bank on restart.
func (s *Store) LoadEpisodes(ctx context.Context, agentID string) ([]*memory.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, agent_id, content, salience, charge, keywords, created_at, last_accessed, access_count
		FROM episodic_records WHERE agent_id = $1
		ORDER BY created_at`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load episodes %s: %w", agentID, err)
	}
	defer rows.Close()

	var records []*memory.Record
	for rows.Next() {
		rec := &memory.Record{Layer: memory.LayerEpisodic}
		if err := rows.Scan(
			&rec.ID, &rec.AgentID, &rec.Content, &rec.Salience, &rec.Charge,
			&rec.Keywords, &rec.CreatedAt, &rec.LastAccessed, &rec.AccessCount,
		); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ForgetEpisode removes an archived record after the in-process forgetting
// pass drops it.
func (s *Store) ForgetEpisode(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM episodic_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("forget episode %s: %w", id, err)
	}
	return nil
}
