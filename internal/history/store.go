package history

// turnStore holds the most recent capacity turns in creation order and
// resolves stable IDs against current residency. Not safe for concurrent
// use on its own; History serializes access.
type turnStore struct {
	capacity int
	nextID   TurnID
	order    []TurnID // resident IDs, oldest first
	turns    map[TurnID]Turn
}

func newTurnStore(capacity int) *turnStore {
	return &turnStore{
		capacity: capacity,
		turns:    make(map[TurnID]Turn),
	}
}

// issueID returns the next stable ID. IDs are strictly increasing and never
// reused, even after the turn they identify has been evicted.
func (s *turnStore) issueID() TurnID {
	id := s.nextID
	s.nextID++
	return id
}

// insert stores a turn under its already-issued ID, evicting the single
// oldest resident turn if the store is over capacity.
func (s *turnStore) insert(t Turn) {
	s.turns[t.ID] = t
	s.order = append(s.order, t.ID)
	if len(s.order) > s.capacity {
		delete(s.turns, s.order[0])
		s.order = s.order[1:]
	}
}

// get resolves an ID against current residency.
func (s *turnStore) get(id TurnID) (Turn, bool) {
	t, ok := s.turns[id]
	return t, ok
}

// recent returns the most recent min(n, live) turns, most-recent-last.
func (s *turnStore) recent(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if n > len(s.order) {
		n = len(s.order)
	}
	out := make([]Turn, 0, n)
	for _, id := range s.order[len(s.order)-n:] {
		out = append(out, s.turns[id])
	}
	return out
}

func (s *turnStore) len() int {
	return len(s.order)
}
