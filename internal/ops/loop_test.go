package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/db"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

// scriptedCompleter returns a different response per call and keeps every
// message set it was sent, so iteration-to-iteration behavior is observable.
type scriptedCompleter struct {
	responses []string
	errAt     int // 1-based call index that fails; 0 means never
	calls     int
	sentMsgs  [][]history.Message
}

func (s *scriptedCompleter) Complete(ctx context.Context, msgs []history.Message) (string, error) {
	s.calls++
	s.sentMsgs = append(s.sentMsgs, msgs)
	if s.errAt > 0 && s.calls == s.errAt {
		return "", errors.NewUpstream(500, "scripted failure")
	}
	if s.calls <= len(s.responses) {
		return s.responses[s.calls-1], nil
	}
	return fmt.Sprintf("response %d", s.calls), nil
}

func (s *scriptedCompleter) Model() string { return "scripted-model" }

func TestLoop_RecordsEveryIteration(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	client := &scriptedCompleter{responses: []string{"draft", "better", "best"}}
	out, err := Loop(context.Background(), database, cfg, sess, client, LoopInput{
		Prompt:     "write a haiku",
		Iterations: 3,
	})
	if err != nil {
		t.Fatalf("Loop failed: %v", err)
	}

	if len(out.Iterations) != 3 {
		t.Fatalf("len(iterations) = %d, want 3", len(out.Iterations))
	}
	if sess.History.Len() != 3 {
		t.Errorf("resident turns = %d, want 3", sess.History.Len())
	}

	// First iteration sends the original prompt verbatim.
	if out.Iterations[0].Prompt != "write a haiku" {
		t.Errorf("iteration 1 prompt = %q", out.Iterations[0].Prompt)
	}
	if out.Iterations[0].Response != "draft" {
		t.Errorf("iteration 1 response = %q, want draft", out.Iterations[0].Response)
	}

	// Later iterations feed the prior response back and restate the task.
	second := out.Iterations[1].Prompt
	if !strings.Contains(second, "draft") {
		t.Errorf("iteration 2 prompt %q does not carry the prior response", second)
	}
	if !strings.Contains(second, "Original request: write a haiku") {
		t.Errorf("iteration 2 prompt %q does not restate the original request", second)
	}

	// Turn IDs strictly increase across iterations.
	for i := 1; i < len(out.Iterations); i++ {
		if out.Iterations[i].TurnID <= out.Iterations[i-1].TurnID {
			t.Errorf("iteration %d turn %d not after %d",
				i+1, out.Iterations[i].TurnID, out.Iterations[i-1].TurnID)
		}
	}

	// Every turn is archived, not just resident.
	archived, err := db.LoadBranchTurns(context.Background(), database, sess.ID, history.DefaultBranch)
	if err != nil {
		t.Fatalf("LoadBranchTurns failed: %v", err)
	}
	if len(archived) != 3 {
		t.Errorf("archived turns = %d, want 3", len(archived))
	}
}

func TestLoop_ContextGrowsAcrossIterations(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	client := &scriptedCompleter{}
	_, err := Loop(context.Background(), database, cfg, sess, client, LoopInput{
		Prompt:     "task",
		Iterations: 3,
	})
	if err != nil {
		t.Fatalf("Loop failed: %v", err)
	}

	if len(client.sentMsgs) != 3 {
		t.Fatalf("upstream calls = %d, want 3", len(client.sentMsgs))
	}
	// Iteration 1 sends just the prompt; each later iteration also carries
	// the prior turns as context.
	if len(client.sentMsgs[0]) != 1 {
		t.Errorf("iteration 1 sent %d messages, want 1", len(client.sentMsgs[0]))
	}
	for i := 1; i < 3; i++ {
		if len(client.sentMsgs[i]) <= len(client.sentMsgs[i-1]) {
			t.Errorf("iteration %d sent %d messages, not more than iteration %d's %d",
				i+1, len(client.sentMsgs[i]), i, len(client.sentMsgs[i-1]))
		}
	}
}

func TestLoop_DefaultIterations(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	out, err := Loop(context.Background(), database, cfg, sess, &scriptedCompleter{}, LoopInput{
		Prompt: "task",
	})
	if err != nil {
		t.Fatalf("Loop failed: %v", err)
	}
	if len(out.Iterations) != DefaultLoopIterations {
		t.Errorf("len(iterations) = %d, want default %d", len(out.Iterations), DefaultLoopIterations)
	}
}

func TestLoop_EmptyPrompt(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	_, err := Loop(context.Background(), database, cfg, sess, &scriptedCompleter{}, LoopInput{
		Prompt: "   ",
	})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestLoop_UnknownBranch(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	_, err := Loop(context.Background(), database, cfg, sess, &scriptedCompleter{}, LoopInput{
		Branch: 9,
		Prompt: "task",
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestLoop_UpstreamFailureKeepsPriorIterations(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	client := &scriptedCompleter{errAt: 2}
	_, err := Loop(context.Background(), database, cfg, sess, client, LoopInput{
		Prompt:     "task",
		Iterations: 3,
	})
	if !errors.Is(err, errors.ErrUpstream) {
		t.Fatalf("err = %v, want UPSTREAM_ERROR", err)
	}

	// The first iteration completed and stays recorded.
	if sess.History.Len() != 1 {
		t.Errorf("resident turns = %d, want 1", sess.History.Len())
	}
	archived, loadErr := db.LoadBranchTurns(context.Background(), database, sess.ID, history.DefaultBranch)
	if loadErr != nil {
		t.Fatalf("LoadBranchTurns failed: %v", loadErr)
	}
	if len(archived) != 1 {
		t.Errorf("archived turns = %d, want 1", len(archived))
	}
}

func TestLoop_FileReincludedEveryIteration(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("shared context"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	client := &scriptedCompleter{}
	_, err := Loop(context.Background(), database, cfg, sess, client, LoopInput{
		Prompt:      "task",
		Iterations:  2,
		IncludeFile: path,
	})
	if err != nil {
		t.Fatalf("Loop failed: %v", err)
	}

	for i, msgs := range client.sentMsgs {
		last := msgs[len(msgs)-1]
		if !strings.Contains(last.Content, "shared context") {
			t.Errorf("iteration %d prompt does not carry the file content", i+1)
		}
	}
}

func TestLoop_CancelledContext(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Loop(ctx, database, cfg, sess, &scriptedCompleter{}, LoopInput{
		Prompt: "task",
	})
	if !errors.Is(err, errors.ErrCancelled) {
		t.Fatalf("err = %v, want CANCELLED", err)
	}
	if sess.History.Len() != 0 {
		t.Errorf("resident turns = %d, want 0", sess.History.Len())
	}
}
