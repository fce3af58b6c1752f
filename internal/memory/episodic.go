package memory

import (
	"math"
	"time"
)

// Scored pairs a record with its retrieval score.
type Scored struct {
	Record *Record `json:"record"`
	Score  float64 `json:"score"`
}

// RetrievalWeights blend the three retrieval signals. They should sum to 1.
type RetrievalWeights struct {
	Similarity float64
	Recency    float64
	Salience   float64
}

// DefaultRetrievalWeights returns the documented defaults.
func DefaultRetrievalWeights() RetrievalWeights {
	return RetrievalWeights{Similarity: 0.5, Recency: 0.3, Salience: 0.2}
}

// episodicStore keeps the durable event memories, ordered by creation.
type episodicStore struct {
	records []*Record
	index   map[string]*Record
}

func newEpisodicStore() *episodicStore {
	return &episodicStore{index: make(map[string]*Record)}
}

func (e *episodicStore) add(rec *Record) {
	rec.Layer = LayerEpisodic
	rec.ExpiresAt = time.Time{} // episodic records do not expire, they decay
	e.records = append(e.records, rec)
	e.index[rec.ID] = rec
}

func (e *episodicStore) get(id string) *Record { return e.index[id] }

func (e *episodicStore) remove(id string) bool {
	if _, ok := e.index[id]; !ok {
		return false
	}
	delete(e.index, id)
	for i, r := range e.records {
		if r.ID == id {
			e.records = append(e.records[:i], e.records[i+1:]...)
			break
		}
	}
	return true
}

// retrieve scores every record against the query and returns the top k,
// best first. An empty store or a query matching nothing still returns an
// empty slice, never nil scores. Returned records get an access boost.
func (e *episodicStore) retrieve(query string, queryEmb []float32, k int, now time.Time, w RetrievalWeights) []Scored {
	keywords := extractKeywords(query)
	scored := make([]Scored, 0, len(e.records))
	for _, r := range e.records {
		sim := cosineSimilarity(queryEmb, r.Embedding)
		if sim == 0 {
			sim = keywordSimilarity(keywords, r.Content)
		}
		score := w.Similarity*sim + w.Recency*recencyScore(r.LastAccessed, now) + w.Salience*r.Salience
		if score <= 0 {
			continue
		}
		scored = append(scored, Scored{Record: r, Score: score})
	}
	sortScored(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	for _, s := range scored {
		s.Record.touch(now)
	}
	return scored
}

// recent returns records created at or after the cutoff.
func (e *episodicStore) recent(cutoff time.Time) []*Record {
	var out []*Record
	for _, r := range e.records {
		if !r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func (e *episodicStore) all() []*Record { return e.records }

func (e *episodicStore) size() int { return len(e.records) }

// recencyScore maps age to (0,1], halving roughly every day.
func recencyScore(lastAccessed, now time.Time) float64 {
	age := now.Sub(lastAccessed)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, age.Hours()/24)
}
