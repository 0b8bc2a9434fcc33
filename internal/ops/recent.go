package ops

import (
	"github.com/hpungsan/weft/internal/history"
)

// RecentInput contains parameters for the Recent operation.
type RecentInput struct {
	Limit int
}

// RecentOutput contains the result of the Recent operation.
type RecentOutput struct {
	Turns []history.Turn `json:"turns"`
}

// Recent returns the most recent resident turns across all branches,
// most-recent-last.
func Recent(sess *Session, input RecentInput) (*RecentOutput, error) {
	limit := clampLimit(input.Limit, DefaultRecentLimit, MaxRecentLimit)
	return &RecentOutput{Turns: sess.History.Recent(limit)}, nil
}
