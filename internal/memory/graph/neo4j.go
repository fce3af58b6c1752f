// Package graph mirrors an agent's semantic concept network into Neo4j so
// the knowledge survives restarts and can be inspected with Cypher. Writes
// are additive MERGEs, matching the in-process graph's merge semantics.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/varkas/minion-mind/internal/memory"
	"go.uber.org/zap"
)

// Store persists concept nodes and relations per agent.
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewStore connects to Neo4j and verifies connectivity.
func NewStore(ctx context.Context, uri, username, password string, logger *zap.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Store{driver: driver, logger: logger}, nil
}

// MergeConcept upserts one concept node. The description is only set when
// the node has none yet and strength only ever rises toward the incoming
// value, so a replayed weaker observation cannot erase stored knowledge.
func (s *Store) MergeConcept(ctx context.Context, agentID string, c *memory.Concept) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	// Pass NULL rather than an empty list when no vector exists, so the
	// merge CASE keeps any embedding already stored.
	var embedding interface{}
	if len(c.Embedding) > 0 {
		vals := make([]float64, len(c.Embedding))
		for i, v := range c.Embedding {
			vals[i] = float64(v)
		}
		embedding = vals
	}

	_, err := session.Run(ctx,
		`MERGE (c:Concept {agent_id: $agentId, name: $name})
		 ON CREATE SET c.description = $description,
		               c.strength = $strength,
		               c.source_count = $sourceCount,
		               c.created_at = datetime()
		 ON MATCH SET c.description = CASE
		                WHEN c.description = '' OR c.description IS NULL
		                THEN $description ELSE c.description END,
		              c.strength = CASE
		                WHEN $strength > c.strength THEN $strength ELSE c.strength END,
		              c.source_count = $sourceCount
		 SET c.updated_at = datetime(),
		     c.embedding = CASE
		       WHEN $embedding IS NULL THEN c.embedding ELSE $embedding END`,
		map[string]interface{}{
			"agentId":     agentID,
			"name":        c.Name,
			"description": c.Description,
			"strength":    c.Strength,
			"sourceCount": c.SourceCount,
			"embedding":   embedding,
		})
	if err != nil {
		return fmt.Errorf("merge concept %s: %w", c.Name, err)
	}

	for rel, weight := range c.Relations {
		_, err := session.Run(ctx,
			`MATCH (a:Concept {agent_id: $agentId, name: $name})
			 MERGE (b:Concept {agent_id: $agentId, name: $rel})
			 ON CREATE SET b.description = '', b.strength = 0.5, b.created_at = datetime()
			 MERGE (a)-[r:RELATED_TO]->(b)
			 ON CREATE SET r.weight = $weight
			 ON MATCH SET r.weight = CASE
			   WHEN $weight > r.weight THEN $weight ELSE r.weight END`,
			map[string]interface{}{
				"agentId": agentID,
				"name":    c.Name,
				"rel":     rel,
				"weight":  weight,
			})
		if err != nil {
			return fmt.Errorf("merge relation %s->%s: %w", c.Name, rel, err)
		}
	}
	return nil
}

// SyncGraph mirrors every concept of the agent's in-process graph.
func (s *Store) SyncGraph(ctx context.Context, agentID string, concepts []*memory.Concept) error {
	for _, c := range concepts {
		if err := s.MergeConcept(ctx, agentID, c); err != nil {
			return err
		}
	}
	s.logger.Debug("semantic graph synced",
		zap.String("agent", agentID),
		zap.Int("concepts", len(concepts)))
	return nil
}

// Concept reads one concept node back, or nil when absent.
func (s *Store) Concept(ctx context.Context, agentID, name string) (*memory.Concept, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (c:Concept {agent_id: $agentId, name: $name})
		 OPTIONAL MATCH (c)-[r:RELATED_TO]->(b:Concept)
		 RETURN c.description AS description, c.strength AS strength,
		        c.source_count AS sourceCount, c.embedding AS embedding,
		        collect({name: b.name, weight: r.weight}) AS relations`,
		map[string]interface{}{"agentId": agentID, "name": name})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		return nil, nil
	}
	rec := result.Record()

	c := &memory.Concept{Name: name, Relations: make(map[string]float64)}
	if v, ok := rec.Get("description"); ok && v != nil {
		c.Description = v.(string)
	}
	if v, ok := rec.Get("strength"); ok && v != nil {
		c.Strength = v.(float64)
	}
	if v, ok := rec.Get("sourceCount"); ok && v != nil {
		c.SourceCount = int(v.(int64))
	}
	if v, ok := rec.Get("embedding"); ok && v != nil {
		for _, item := range v.([]interface{}) {
			if f, ok := item.(float64); ok {
				c.Embedding = append(c.Embedding, float32(f))
			}
		}
	}
	if v, ok := rec.Get("relations"); ok && v != nil {
		for _, item := range v.([]interface{}) {
			m, ok := item.(map[string]interface{})
			if !ok || m["name"] == nil {
				continue
			}
			if w, ok := m["weight"].(float64); ok {
				c.Relations[m["name"].(string)] = w
			}
		}
	}
	return c, nil
}

// Close releases the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
