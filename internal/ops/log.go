package ops

import (
	"github.com/hpungsan/weft/internal/history"
)

// LogInput contains parameters for the BranchLog operation.
type LogInput struct {
	Branch history.BranchID
	Limit  int
}

// LogOutput contains the result of the BranchLog operation.
type LogOutput struct {
	Branch history.BranchID `json:"branch"`
	Turns  []history.Turn   `json:"turns"`
}

// BranchLog returns a branch's resident turns, oldest first, bounded to the
// last Limit entries of the branch's sequence. Evicted turns are omitted.
func BranchLog(sess *Session, input LogInput) (*LogOutput, error) {
	limit := clampLimit(input.Limit, DefaultLogLimit, MaxLogLimit)

	turns, err := sess.History.BranchTurns(input.Branch, limit)
	if err != nil {
		return nil, err
	}
	return &LogOutput{Branch: input.Branch, Turns: turns}, nil
}
