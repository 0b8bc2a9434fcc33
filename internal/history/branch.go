package history

import "sort"

// branchIndex maps branch IDs to their append-order turn sequences and
// records each branch's fork point. Sequences are append-only: entries stay
// even after the referenced turn is evicted, and readers filter against the
// store. Not safe for concurrent use on its own; History serializes access.
type branchIndex struct {
	nextBranch BranchID // next ID to allocate; 0 is the implicit default
	sequences  map[BranchID][]TurnID
	parents    map[BranchID]*TurnID
}

func newBranchIndex() *branchIndex {
	return &branchIndex{
		nextBranch: DefaultBranch + 1,
		sequences:  make(map[BranchID][]TurnID),
		parents:    make(map[BranchID]*TurnID),
	}
}

// appendToBranch records id at the end of the branch's sequence, creating
// the sequence on first use.
func (b *branchIndex) appendToBranch(branch BranchID, id TurnID) {
	b.sequences[branch] = append(b.sequences[branch], id)
	if _, ok := b.parents[branch]; !ok {
		b.parents[branch] = nil
	}
	if branch >= b.nextBranch {
		b.nextBranch = branch + 1
	}
}

// allocate creates a new branch forked from the given parent turn and
// returns its ID. Residency of the parent is the caller's check.
func (b *branchIndex) allocate(parent TurnID) BranchID {
	id := b.nextBranch
	b.nextBranch++
	p := parent
	b.sequences[id] = nil
	b.parents[id] = &p
	return id
}

// register installs a branch with a known ID and fork point, used when
// rebuilding from archived state.
func (b *branchIndex) register(branch BranchID, parent *TurnID) {
	if _, ok := b.sequences[branch]; !ok {
		b.sequences[branch] = nil
	}
	if parent != nil {
		p := *parent
		b.parents[branch] = &p
	} else if _, ok := b.parents[branch]; !ok {
		b.parents[branch] = nil
	}
	if branch >= b.nextBranch {
		b.nextBranch = branch + 1
	}
}

// tail returns the last limit IDs of the branch's sequence in append order.
// The second return is false if the branch was never created.
func (b *branchIndex) tail(branch BranchID, limit int) ([]TurnID, bool) {
	seq, ok := b.sequences[branch]
	if !ok && branch != DefaultBranch {
		return nil, false
	}
	if limit > len(seq) {
		limit = len(seq)
	}
	return seq[len(seq)-limit:], true
}

// parent returns the branch's fork point. The second return is false if the
// branch was never created.
func (b *branchIndex) parent(branch BranchID) (*TurnID, bool) {
	if branch == DefaultBranch {
		return nil, true
	}
	p, ok := b.parents[branch]
	return p, ok
}

// known returns every branch ID ever created, sorted ascending. The default
// branch is always included.
func (b *branchIndex) known() []BranchID {
	ids := make([]BranchID, 0, len(b.sequences)+1)
	seen := false
	for id := range b.sequences {
		if id == DefaultBranch {
			seen = true
		}
		ids = append(ids, id)
	}
	if !seen {
		ids = append(ids, DefaultBranch)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// size returns the length of a branch's sequence, counting evicted entries.
func (b *branchIndex) size(branch BranchID) int {
	return len(b.sequences[branch])
}
