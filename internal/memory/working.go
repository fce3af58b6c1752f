package memory

// workingSet holds the handful of items an agent is attending to right now.
// It has a hard capacity; inserting past capacity evicts the lowest-salience
// item, with the oldest losing ties.
type workingSet struct {
	capacity int
	items    []*Record
}

func newWorkingSet(capacity int) *workingSet {
	if capacity <= 0 {
		capacity = 7
	}
	return &workingSet{capacity: capacity}
}

// add inserts a record and returns the evicted record, if any.
func (w *workingSet) add(rec *Record) *Record {
	rec.Layer = LayerWorking
	w.items = append(w.items, rec)
	if len(w.items) <= w.capacity {
		return nil
	}

	victim := 0
	for i, r := range w.items {
		// Strict less-than keeps the oldest among equals as the victim,
		// since earlier entries were appended first.
		if r.Salience < w.items[victim].Salience {
			victim = i
		}
	}
	evicted := w.items[victim]
	w.items = append(w.items[:victim], w.items[victim+1:]...)
	return evicted
}

// snapshot returns the live items, oldest first.
func (w *workingSet) snapshot() []*Record {
	out := make([]*Record, len(w.items))
	copy(out, w.items)
	return out
}

func (w *workingSet) size() int { return len(w.items) }
