package ops

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/db"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

// AskInput contains parameters for the Ask operation.
type AskInput struct {
	Branch       history.BranchID
	Prompt       string // required
	SystemPrompt string // applied to this turn; assembled only when the branch has no prior context
	ContextTurns int    // window of branch turns sent upstream; default from config
	IncludeFile  string // optional file whose content is appended to the prompt
}

// AskOutput contains the result of the Ask operation.
type AskOutput struct {
	TurnID         history.TurnID   `json:"turn_id"`
	Branch         history.BranchID `json:"branch"`
	Response       string           `json:"response"`
	ContextTurns   int              `json:"context_turns"`
	TokensEstimate int              `json:"tokens_estimate"`
}

// Ask assembles the branch's recent turns into a generation request, sends
// it, and records the completed turn in both the in-memory history and the
// archive. Upstream failures surface as errors; no turn is recorded for them.
// The turn enters memory before the archive: if the archive insert fails, the
// error is returned but the turn stays resident, and it will be absent after
// a session resume.
func Ask(ctx context.Context, database *sql.DB, cfg *config.Config, sess *Session, client Completer, input AskInput) (*AskOutput, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, errors.NewInvalidRequest("prompt is required")
	}

	if input.IncludeFile != "" {
		content, err := readPromptFile(input.IncludeFile)
		if err != nil {
			return nil, err
		}
		prompt = fmt.Sprintf("%s\n\nFile content from %q:\n%s", prompt, input.IncludeFile, content)
	}

	window := clampLimit(input.ContextTurns, cfg.ContextTurns, MaxContextTurns)
	turns, err := sess.History.BranchTurns(input.Branch, window)
	if err != nil {
		return nil, err
	}

	systemPrompt := strings.TrimSpace(input.SystemPrompt)
	msgs := history.Assemble(turns, "")
	if len(msgs) == 0 && systemPrompt != "" {
		msgs = append(msgs, history.Message{Role: history.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history.Message{Role: history.RoleUser, Content: prompt})

	response, err := client.Complete(ctx, msgs)
	if err != nil {
		return nil, err
	}

	id, err := sess.History.Append(history.TurnData{
		Branch:       input.Branch,
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Response:     response,
	})
	if err != nil {
		return nil, err
	}

	turn, err := sess.History.Get(id)
	if err != nil {
		// Concurrent writers may have evicted the turn already; archive
		// the data we hold instead of failing the ask.
		turn = history.Turn{
			ID:           id,
			Branch:       input.Branch,
			SystemPrompt: systemPrompt,
			UserPrompt:   prompt,
			Response:     response,
			CreatedAt:    time.Now().Unix(),
		}
	}
	if err := db.InsertTurn(database, sess.ID, turn); err != nil {
		return nil, err
	}

	return &AskOutput{
		TurnID:         id,
		Branch:         input.Branch,
		Response:       response,
		ContextTurns:   len(turns),
		TokensEstimate: estimateMessages(msgs),
	}, nil
}

// readPromptFile reads a file for inline inclusion in a prompt.
func readPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}
