package ops

import (
	"github.com/hpungsan/weft/internal/history"
)

// BranchInfo summarizes one branch for listings.
type BranchInfo struct {
	ID            history.BranchID     `json:"id"`
	ForkParent    *history.TurnID      `json:"fork_parent,omitempty"`
	TotalTurns    int                  `json:"total_turns"`    // sequence length, counting evicted entries
	ResidentTurns int                  `json:"resident_turns"` // still in memory
	Lineage       []history.LineageHop `json:"lineage,omitempty"`
}

// BranchesOutput contains the result of the Branches operation.
type BranchesOutput struct {
	Branches []BranchInfo `json:"branches"`
}

// Branches lists every branch of the session with its fork point and
// lineage, including branches whose turns are fully evicted.
func Branches(sess *Session) (*BranchesOutput, error) {
	out := &BranchesOutput{Branches: make([]BranchInfo, 0)}

	// A branch can't have more resident turns than the store holds.
	residentWindow := sess.History.Len()
	if residentWindow == 0 {
		residentWindow = 1
	}

	for _, id := range sess.History.KnownBranches() {
		info := BranchInfo{ID: id, TotalTurns: sess.History.BranchSize(id)}

		parent, err := sess.History.ForkPoint(id)
		if err != nil {
			return nil, err
		}
		info.ForkParent = parent

		turns, err := sess.History.BranchTurns(id, residentWindow)
		if err != nil {
			return nil, err
		}
		info.ResidentTurns = len(turns)

		lineage, err := sess.History.Lineage(id)
		if err != nil {
			return nil, err
		}
		info.Lineage = lineage

		out.Branches = append(out.Branches, info)
	}
	return out, nil
}
