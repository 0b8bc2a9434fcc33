package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

// LoopInput contains parameters for the Loop operation.
type LoopInput struct {
	Branch history.BranchID
	Prompt string // required; the task the loop keeps working on

	SystemPrompt string
	Iterations   int    // default 3
	ContextTurns int    // per-iteration context window; default from config
	IncludeFile  string // optional file re-included in every iteration's prompt
}

// LoopIteration records one completed iteration of the loop.
type LoopIteration struct {
	Iteration int              `json:"iteration"`
	TurnID    history.TurnID   `json:"turn_id"`
	Branch    history.BranchID `json:"branch"`
	Prompt    string           `json:"prompt"`
	Response  string           `json:"response"`
}

// LoopOutput contains the result of the Loop operation.
type LoopOutput struct {
	Branch     history.BranchID `json:"branch"`
	Iterations []LoopIteration  `json:"iterations"`
}

// Loop runs an iterative refinement loop on a branch: each iteration sends
// the current prompt with the branch's recent turns as context, records the
// completed turn, and derives the next prompt from the response while
// restating the original request. Every iteration is a normal Ask, so each
// turn lands in both memory and the archive as it completes; if an iteration
// fails, the error is returned and the turns of prior iterations stay
// recorded.
func Loop(ctx context.Context, database *sql.DB, cfg *config.Config, sess *Session, client Completer, input LoopInput) (*LoopOutput, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, errors.NewInvalidRequest("prompt is required")
	}

	iterations := clampLimit(input.Iterations, DefaultLoopIterations, MaxLoopIterations)

	out := &LoopOutput{
		Branch:     input.Branch,
		Iterations: make([]LoopIteration, 0, iterations),
	}

	current := prompt
	for i := 1; i <= iterations; i++ {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("loop")
		}

		ask, err := Ask(ctx, database, cfg, sess, client, AskInput{
			Branch:       input.Branch,
			Prompt:       current,
			SystemPrompt: input.SystemPrompt,
			ContextTurns: input.ContextTurns,
			IncludeFile:  input.IncludeFile,
		})
		if err != nil {
			return nil, err
		}

		out.Iterations = append(out.Iterations, LoopIteration{
			Iteration: i,
			TurnID:    ask.TurnID,
			Branch:    input.Branch,
			Prompt:    current,
			Response:  ask.Response,
		})

		current = nextLoopPrompt(ask.Response, prompt)
	}

	return out, nil
}

// nextLoopPrompt derives an iteration's prompt from the prior response,
// restating the original request so the loop stays on task.
func nextLoopPrompt(response, original string) string {
	return fmt.Sprintf("Based on this response: %q, continue improving or expanding on the task. Original request: %s", response, original)
}
