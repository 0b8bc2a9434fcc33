package ops

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/db"
	"github.com/hpungsan/weft/internal/history"
)

// ForkInput contains parameters for the Fork operation.
type ForkInput struct {
	FromTurn history.TurnID

	// SystemPrompt and UserPrompt override the seed turn's prompts.
	// When nil, the parent turn's prompts are carried over.
	SystemPrompt *string
	UserPrompt   *string
}

// ForkOutput contains the result of the Fork operation.
type ForkOutput struct {
	Branch     history.BranchID `json:"branch"`
	TurnID     history.TurnID   `json:"turn_id"`
	ForkParent history.TurnID   `json:"fork_parent"`
}

// Fork creates a new branch from an existing turn and seeds it with a first
// turn referencing that turn as its fork parent. The seed turn carries the
// parent's prompts (or the given overrides) and no response; the parent turn
// and branch are left untouched. Fails with NOT_FOUND if the source turn has
// been evicted. The branch and seed turn enter memory before the archive: if
// an archive insert fails, the error is returned but both stay resident, and
// they will be absent after a session resume.
func Fork(database *sql.DB, cfg *config.Config, sess *Session, input ForkInput) (*ForkOutput, error) {
	parent, err := sess.History.Get(input.FromTurn)
	if err != nil {
		return nil, err
	}

	branch, err := sess.History.CreateBranch(input.FromTurn)
	if err != nil {
		return nil, err
	}

	systemPrompt := parent.SystemPrompt
	if input.SystemPrompt != nil {
		systemPrompt = strings.TrimSpace(*input.SystemPrompt)
	}
	userPrompt := parent.UserPrompt
	if input.UserPrompt != nil {
		userPrompt = strings.TrimSpace(*input.UserPrompt)
	}

	forkParent := input.FromTurn
	id, err := sess.History.Append(history.TurnData{
		Branch:       branch,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		ForkParent:   &forkParent,
	})
	if err != nil {
		return nil, err
	}

	if err := db.InsertBranch(database, sess.ID, branch, &forkParent, time.Now().Unix()); err != nil {
		return nil, err
	}
	turn, err := sess.History.Get(id)
	if err != nil {
		turn = history.Turn{
			ID:           id,
			Branch:       branch,
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt,
			ForkParent:   &forkParent,
			CreatedAt:    time.Now().Unix(),
		}
	}
	if err := db.InsertTurn(database, sess.ID, turn); err != nil {
		return nil, err
	}

	return &ForkOutput{Branch: branch, TurnID: id, ForkParent: forkParent}, nil
}
