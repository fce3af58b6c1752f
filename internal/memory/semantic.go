package memory

import "time"

// Concept is a distilled piece of general knowledge mined from episodes.
// Strength grows with reinforcement and decays with neglect but knowledge is
// only ever added or strengthened here, never rewritten by a single episode.
type Concept struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Strength    float64            `json:"strength"`
	Relations   map[string]float64 `json:"relations,omitempty"` // concept name -> weight
	Embedding   []float32          `json:"embedding,omitempty"`
	SourceCount int                `json:"source_count"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// EmbedText is the text a concept is embedded under: the name plus whatever
// description it has accumulated.
func (c *Concept) EmbedText() string {
	if c.Description == "" {
		return c.Name
	}
	return c.Name + ": " + c.Description
}

// semanticGraph holds an agent's concept network.
type semanticGraph struct {
	concepts map[string]*Concept
}

func newSemanticGraph() *semanticGraph {
	return &semanticGraph{concepts: make(map[string]*Concept)}
}

// merge folds one observation of a concept into the graph. A new concept is
// accommodated at moderate strength; a known one is assimilated, its strength
// boosted by a fraction of the remaining headroom. Descriptions are kept once
// set so later weaker evidence cannot overwrite earlier knowledge. Relation
// weights only accumulate.
func (g *semanticGraph) merge(name, description string, related []string, at time.Time) *Concept {
	c, ok := g.concepts[name]
	if !ok {
		c = &Concept{
			Name:        name,
			Description: description,
			Strength:    0.5,
			Relations:   make(map[string]float64),
		}
		g.concepts[name] = c
	} else {
		c.Strength += (1 - c.Strength) * 0.1
		if c.Description == "" {
			c.Description = description
		}
	}
	for _, rel := range related {
		if rel == name {
			continue
		}
		c.Relations[rel] += 0.1
	}
	c.SourceCount++
	c.UpdatedAt = at
	return c
}

func (g *semanticGraph) get(name string) *Concept { return g.concepts[name] }

// lookup scores concepts against the query. Concepts carrying an embedding
// compare by cosine when a query embedding is supplied; the rest compare by
// keywords, same split as episodic retrieval.
func (g *semanticGraph) lookup(query string, queryEmb []float32, k int) []*Concept {
	keywords := extractKeywords(query)
	scored := make([]Scored, 0, len(g.concepts))
	for _, c := range g.concepts {
		var sim float64
		if len(queryEmb) > 0 && len(c.Embedding) > 0 {
			sim = cosineSimilarity(queryEmb, c.Embedding)
		} else {
			sim = keywordSimilarity(keywords, c.Name+" "+c.Description)
		}
		if sim <= 0 {
			continue
		}
		scored = append(scored, Scored{Score: sim * c.Strength, Record: &Record{ID: c.Name}})
	}
	sortScored(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]*Concept, 0, len(scored))
	for _, s := range scored {
		out = append(out, g.concepts[s.Record.ID])
	}
	return out
}

// decay weakens every concept by the factor and removes those that fall
// below the floor while unprotected by reinforcement.
func (g *semanticGraph) decay(factor, floor float64) int {
	removed := 0
	for name, c := range g.concepts {
		c.Strength *= factor
		if c.Strength < floor && c.SourceCount < 3 {
			delete(g.concepts, name)
			removed++
		}
	}
	return removed
}

// unembedded returns the names of concepts still lacking an embedding.
func (g *semanticGraph) unembedded() []string {
	var out []string
	for name, c := range g.concepts {
		if len(c.Embedding) == 0 {
			out = append(out, name)
		}
	}
	return out
}

func (g *semanticGraph) size() int { return len(g.concepts) }

func (g *semanticGraph) all() []*Concept {
	out := make([]*Concept, 0, len(g.concepts))
	for _, c := range g.concepts {
		out = append(out, c)
	}
	return out
}
