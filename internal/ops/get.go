package ops

import (
	"github.com/hpungsan/weft/internal/history"
)

// GetTurnOutput contains the result of the GetTurn operation.
type GetTurnOutput struct {
	Turn history.Turn `json:"turn"`
}

// GetTurn returns a single resident turn by stable ID. Evicted turns are
// NOT_FOUND; that is the expected outcome for old IDs, not a fault.
func GetTurn(sess *Session, id history.TurnID) (*GetTurnOutput, error) {
	turn, err := sess.History.Get(id)
	if err != nil {
		return nil, err
	}
	return &GetTurnOutput{Turn: turn}, nil
}
