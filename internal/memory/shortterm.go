package memory

import "time"

// shortTerm is the TTL buffer between working memory and the episodic store.
// Records wait here until a consolidation pass either promotes them or lets
// them expire.
type shortTerm struct {
	ttl   time.Duration
	items map[string]*Record
}

func newShortTerm(ttl time.Duration) *shortTerm {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &shortTerm{ttl: ttl, items: make(map[string]*Record)}
}

func (s *shortTerm) add(rec *Record, now time.Time) {
	rec.Layer = LayerShortTerm
	rec.ExpiresAt = now.Add(s.ttl)
	s.items[rec.ID] = rec
}

// take removes and returns the record, regardless of expiry.
func (s *shortTerm) take(id string) *Record {
	rec, ok := s.items[id]
	if !ok {
		return nil
	}
	delete(s.items, id)
	return rec
}

// live returns unexpired records.
func (s *shortTerm) live(now time.Time) []*Record {
	var out []*Record
	for _, r := range s.items {
		if now.Before(r.ExpiresAt) {
			out = append(out, r)
		}
	}
	return out
}

// sweep drops expired records and returns how many were dropped.
func (s *shortTerm) sweep(now time.Time) int {
	dropped := 0
	for id, r := range s.items {
		if !now.Before(r.ExpiresAt) {
			delete(s.items, id)
			dropped++
		}
	}
	return dropped
}

func (s *shortTerm) size() int { return len(s.items) }
