package history

import (
	"sync"
	"time"

	"github.com/hpungsan/weft/internal/errors"
)

// History combines the bounded turn store and the branch index behind a
// single lock, so a turn and its branch entry are always observed together.
// All methods are safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	store *turnStore
	index *branchIndex
}

// New creates a History that retains at most capacity turns.
func New(capacity int) (*History, error) {
	if capacity <= 0 {
		return nil, errors.NewInvalidRequest("capacity must be positive")
	}
	return &History{
		store: newTurnStore(capacity),
		index: newBranchIndex(),
	}, nil
}

// Restore rebuilds a History from archived branches and turns. Turns must be
// in increasing ID order (the order the archive recorded them); only the
// last capacity turns end up resident, but every branch sequence entry is
// replayed so lookups behave as if the process had never restarted.
func Restore(capacity int, branches []BranchRecord, turns []Turn) (*History, error) {
	h, err := New(capacity)
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		h.index.register(b.ID, b.ForkParent)
	}
	var last TurnID
	for i, t := range turns {
		if i > 0 && t.ID <= last {
			return nil, errors.NewInvalidRequest("turns must be in increasing id order")
		}
		last = t.ID
		h.store.nextID = t.ID + 1
		h.store.insert(t)
		h.index.appendToBranch(t.Branch, t.ID)
	}
	return h, nil
}

// Snapshot returns the branch records and resident turns in creation order,
// suitable for feeding back into Restore. The core defines no file format;
// serialization is the caller's concern.
func (h *History) Snapshot() ([]BranchRecord, []Turn) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	branches := make([]BranchRecord, 0, len(h.index.sequences))
	for _, id := range h.index.known() {
		p, _ := h.index.parent(id)
		branches = append(branches, BranchRecord{ID: id, ForkParent: p})
	}
	return branches, h.store.recent(h.store.len())
}

// Append records a new turn: it assigns the next stable ID, stores the turn,
// appends the ID to its branch's sequence, and evicts the globally oldest
// turn once the store is over capacity. Eviction is FIFO across all
// branches; a very active branch can push out another branch's turns, so
// size the capacity for the retention you need.
func (h *History) Append(data TurnData) (TurnID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.store.issueID()
	t := Turn{
		ID:           id,
		Branch:       data.Branch,
		SystemPrompt: data.SystemPrompt,
		UserPrompt:   data.UserPrompt,
		Response:     data.Response,
		CreatedAt:    time.Now().Unix(),
		ForkParent:   data.ForkParent,
	}
	h.store.insert(t)
	h.index.appendToBranch(t.Branch, id)
	return id, nil
}

// Get returns the turn for id, or NOT_FOUND once it has been evicted.
func (h *History) Get(id TurnID) (Turn, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.store.get(id)
	if !ok {
		return Turn{}, errors.NewTurnNotFound(uint64(id))
	}
	return t, nil
}

// Recent returns the most recent min(n, live) turns across all branches,
// most-recent-last.
func (h *History) Recent(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.store.recent(n)
}

// Len returns the number of resident turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.store.len()
}

// CreateBranch allocates a new branch forked from the given turn. Fails with
// NOT_FOUND if the parent turn is not currently resident. The caller is
// expected to append the branch's first turn with ForkParent set to parent;
// forking mutates neither the parent turn nor its branch.
func (h *History) CreateBranch(parent TurnID) (BranchID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.store.get(parent); !ok {
		return 0, errors.NewTurnNotFound(uint64(parent))
	}
	return h.index.allocate(parent), nil
}

// BranchTurns resolves up to the last limit entries of the branch's sequence
// against current residency, dropping evicted turns and preserving order.
// Unknown branches are NOT_FOUND; a known branch whose turns have all been
// evicted yields an empty slice.
func (h *History) BranchTurns(branch BranchID, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, errors.NewInvalidRequest("limit must be positive")
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	ids, ok := h.index.tail(branch, limit)
	if !ok {
		return nil, errors.NewBranchNotFound(uint64(branch))
	}
	turns := make([]Turn, 0, len(ids))
	for _, id := range ids {
		if t, resident := h.store.get(id); resident {
			turns = append(turns, t)
		}
	}
	return turns, nil
}

// BranchSize returns the length of a branch's append-only sequence,
// including entries whose turns have been evicted.
func (h *History) BranchSize(branch BranchID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.index.size(branch)
}

// KnownBranches returns every branch ever created, sorted ascending,
// including branches whose turns are fully evicted.
func (h *History) KnownBranches() []BranchID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.index.known()
}

// ForkPoint returns the turn a branch was forked from, or nil for the
// default branch. Unknown branches are NOT_FOUND.
func (h *History) ForkPoint(branch BranchID) (*TurnID, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	p, ok := h.index.parent(branch)
	if !ok {
		return nil, errors.NewBranchNotFound(uint64(branch))
	}
	return p, nil
}

// Lineage walks a branch's ancestry: each hop records the branch and the
// turn it forked from. The walk resolves each fork parent against current
// residency and stops at the first evicted ancestor rather than failing.
// Fork parents always predate every turn of the forking branch, so the walk
// terminates.
func (h *History) Lineage(branch BranchID) ([]LineageHop, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	current := branch
	var hops []LineageHop
	for {
		p, ok := h.index.parent(current)
		if !ok {
			if hops == nil {
				return nil, errors.NewBranchNotFound(uint64(branch))
			}
			return hops, nil
		}
		hops = append(hops, LineageHop{Branch: current, ForkParent: p})
		if p == nil {
			return hops, nil
		}
		t, resident := h.store.get(*p)
		if !resident {
			return hops, nil
		}
		current = t.Branch
	}
}
