// Package ops implements the operations behind every surface (CLI, web,
// MCP): session lifecycle, asking the model, forking, history reads, and
// transcript export. The in-memory history core stays pure; this layer is
// where it meets the generation client and the session archive.
package ops

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/weft/internal/history"
)

// Window and pagination limits.
const (
	DefaultLogLimit     = 20
	MaxLogLimit         = 100
	DefaultRecentLimit  = 10
	MaxRecentLimit      = 100
	DefaultSessionLimit = 20
	MaxSessionLimit     = 100
	MaxContextTurns     = 50

	DefaultLoopIterations = 3
	MaxLoopIterations     = 20
)

// Completer is the generation client the Ask operation calls. Satisfied by
// llm.Client; tests substitute a fake.
type Completer interface {
	Complete(ctx context.Context, msgs []history.Message) (string, error)
	Model() string
}

// clampLimit applies a default for non-positive limits and a hard maximum.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// CountChars counts runes, not bytes.
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// EstimateTokens estimates token count using a word-based heuristic
// (1.3x multiplier on word count). Good enough for context budgeting.
func EstimateTokens(text string) int {
	words := strings.Fields(strings.TrimSpace(text))
	return int(math.Ceil(float64(len(words)) * 1.3))
}

// ContextSize summarizes the assembled size of a set of turns.
type ContextSize struct {
	Chars  int `json:"chars"`
	Tokens int `json:"tokens"`
}

// EstimateContext reports the character and token size of the context the
// given turns would assemble into.
func EstimateContext(turns []history.Turn) ContextSize {
	msgs := history.Assemble(turns, "")
	size := ContextSize{Tokens: estimateMessages(msgs)}
	for _, m := range msgs {
		size.Chars += CountChars(m.Content)
	}
	return size
}

// estimateMessages sums the token estimate over assembled messages.
func estimateMessages(msgs []history.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}
