package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/db"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

func TestNewSession_RecordsInArchive(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	if sess.ID == "" {
		t.Fatal("session ID is empty")
	}
	if sess.Model != cfg.Model {
		t.Errorf("Model = %q, want %q", sess.Model, cfg.Model)
	}

	archived, err := db.GetSession(database, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if archived.Model != cfg.Model {
		t.Errorf("archived model = %q, want %q", archived.Model, cfg.Model)
	}
}

func TestResumeSession_RoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	client := &fakeCompleter{response: "first answer"}
	out, err := Ask(context.Background(), database, cfg, sess, client, AskInput{
		Branch: history.DefaultBranch,
		Prompt: "first question",
	})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	resumed, err := ResumeSession(context.Background(), database, cfg, sess.ID)
	if err != nil {
		t.Fatalf("ResumeSession failed: %v", err)
	}
	if resumed.ID != sess.ID {
		t.Errorf("resumed ID = %q, want %q", resumed.ID, sess.ID)
	}

	turn, err := resumed.History.Get(out.TurnID)
	if err != nil {
		t.Fatalf("Get after resume failed: %v", err)
	}
	if turn.UserPrompt != "first question" || turn.Response != "first answer" {
		t.Errorf("restored turn = %+v", turn)
	}

	// IDs continue past the restored ones.
	next, err := resumed.History.Append(history.TurnData{Branch: history.DefaultBranch, UserPrompt: "u", Response: "r"})
	if err != nil {
		t.Fatalf("Append after resume failed: %v", err)
	}
	if next <= out.TurnID {
		t.Errorf("post-resume ID %d not greater than restored ID %d", next, out.TurnID)
	}
}

func TestResumeSession_LatestWhenUnspecified(t *testing.T) {
	cfg := config.DefaultConfig()
	database, sess := newTestSession(t, cfg)

	resumed, err := ResumeSession(context.Background(), database, cfg, "")
	if err != nil {
		t.Fatalf("ResumeSession failed: %v", err)
	}
	if resumed.ID != sess.ID {
		t.Errorf("resumed ID = %q, want latest %q", resumed.ID, sess.ID)
	}
}

func TestResumeSession_EmptyArchiveCreatesFresh(t *testing.T) {
	cfg := config.DefaultConfig()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	sess, err := ResumeSession(context.Background(), database, cfg, "")
	if err != nil {
		t.Fatalf("ResumeSession failed: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("fresh session has empty ID")
	}
	if sess.History.Len() != 0 {
		t.Errorf("fresh session Len = %d, want 0", sess.History.Len())
	}
}

func TestResumeSession_UnknownID(t *testing.T) {
	cfg := config.DefaultConfig()
	database, _ := newTestSession(t, cfg)

	_, err := ResumeSession(context.Background(), database, cfg, "01NOSUCHSESSION0000000000")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestSessions_NewestFirst(t *testing.T) {
	cfg := config.DefaultConfig()
	database, first := newTestSession(t, cfg)

	second, err := NewSession(database, cfg)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	list, err := Sessions(database, 10)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("order = [%s, %s], want newest first", list[0].ID, list[1].ID)
	}
}
