package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/db"
	"github.com/hpungsan/weft/internal/history"
	"github.com/hpungsan/weft/internal/ops"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	cleanup := func() {
		database.Close()
	}
	return database, cleanup
}

// testConfig returns a default config for testing.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests
	return cfg
}

type stubCompleter struct {
	response string
}

func (s *stubCompleter) Complete(ctx context.Context, msgs []history.Message) (string, error) {
	return s.response, nil
}

func (s *stubCompleter) Model() string { return "stub-model" }

// seedSession creates a session with one completed turn in the archive, so
// CLI commands (which resume the latest session) have something to read.
func seedSession(t *testing.T, database *sql.DB, cfg *config.Config) (*ops.Session, *ops.AskOutput) {
	t.Helper()

	sess, err := ops.NewSession(database, cfg)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	out, err := ops.Ask(context.Background(), database, cfg, sess, &stubCompleter{response: "seeded answer"}, ops.AskInput{
		Branch: history.DefaultBranch,
		Prompt: "seeded question",
	})
	if err != nil {
		t.Fatalf("failed to seed turn: %v", err)
	}
	return sess, out
}

// captureStdout runs fn while capturing everything written to stdout.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), runErr
}

// TestCLIBranches tests the branches command.
func TestCLIBranches(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)

	stdout, err := captureStdout(t, func() error {
		return app.Run([]string{"weft", "branches"})
	})
	if err != nil {
		t.Fatalf("branches command failed: %v", err)
	}

	var output ops.BranchesOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}

	if len(output.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(output.Branches))
	}
	if output.Branches[0].TotalTurns != 1 {
		t.Errorf("expected total_turns=1, got %d", output.Branches[0].TotalTurns)
	}
}

// TestCLILog tests the log command.
func TestCLILog(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)

	stdout, err := captureStdout(t, func() error {
		return app.Run([]string{"weft", "log", "--branch=0"})
	})
	if err != nil {
		t.Fatalf("log command failed: %v", err)
	}

	var output ops.LogOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if len(output.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(output.Turns))
	}
	if output.Turns[0].UserPrompt != "seeded question" {
		t.Errorf("expected seeded prompt, got %q", output.Turns[0].UserPrompt)
	}
}

// TestCLIGet tests the get command.
func TestCLIGet(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	_, seeded := seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)
	turnArg := strconv.FormatUint(uint64(seeded.TurnID), 10)

	stdout, err := captureStdout(t, func() error {
		return app.Run([]string{"weft", "get", turnArg})
	})
	if err != nil {
		t.Fatalf("get command failed: %v", err)
	}

	var output ops.GetTurnOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if output.Turn.ID != seeded.TurnID {
		t.Errorf("expected ID=%d, got %d", seeded.TurnID, output.Turn.ID)
	}
	if output.Turn.Response != "seeded answer" {
		t.Errorf("expected seeded answer, got %q", output.Turn.Response)
	}
}

// TestCLIFork tests the fork command.
func TestCLIFork(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	_, seeded := seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)
	turnArg := strconv.FormatUint(uint64(seeded.TurnID), 10)

	stdout, err := captureStdout(t, func() error {
		return app.Run([]string{"weft", "fork", "--user-prompt=alternate path", turnArg})
	})
	if err != nil {
		t.Fatalf("fork command failed: %v", err)
	}

	var output ops.ForkOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if output.Branch == history.DefaultBranch {
		t.Error("fork reused the default branch")
	}
	if output.ForkParent != seeded.TurnID {
		t.Errorf("expected fork_parent=%d, got %d", seeded.TurnID, output.ForkParent)
	}
}

// TestCLIRecent tests the recent command.
func TestCLIRecent(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)

	stdout, err := captureStdout(t, func() error {
		return app.Run([]string{"weft", "recent", "--limit=5"})
	})
	if err != nil {
		t.Fatalf("recent command failed: %v", err)
	}

	var output ops.RecentOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if len(output.Turns) != 1 {
		t.Errorf("expected 1 turn, got %d", len(output.Turns))
	}
}

// TestCLIExport tests the export command.
func TestCLIExport(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)
	exportPath := filepath.Join(t.TempDir(), "export.jsonl")

	stdout, err := captureStdout(t, func() error {
		return app.Run([]string{"weft", "export", "--format=jsonl", "--path=" + exportPath})
	})
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	var output ops.ExportOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if output.Count != 1 {
		t.Errorf("expected count=1, got %d", output.Count)
	}
	if output.Path != exportPath {
		t.Errorf("expected path=%s, got %s", exportPath, output.Path)
	}
	if _, err := os.Stat(exportPath); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

// TestCLISessions tests the sessions command.
func TestCLISessions(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	sess, _ := seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)

	stdout, err := captureStdout(t, func() error {
		return app.Run([]string{"weft", "sessions"})
	})
	if err != nil {
		t.Fatalf("sessions command failed: %v", err)
	}

	var output struct {
		Sessions []db.Session `json:"sessions"`
	}
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if len(output.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(output.Sessions))
	}
	if output.Sessions[0].ID != sess.ID {
		t.Errorf("expected ID=%s, got %s", sess.ID, output.Sessions[0].ID)
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig()
	seedSession(t, database, cfg)

	app := newCLIApp(database, cfg)

	t.Run("get evicted turn returns error", func(t *testing.T) {
		// cli.Exit writes to stderr, so just verify the error is returned
		_, err := captureStdout(t, func() error {
			return app.Run([]string{"weft", "get", "999"})
		})
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("fork without turn argument returns error", func(t *testing.T) {
		_, err := captureStdout(t, func() error {
			return app.Run([]string{"weft", "fork"})
		})
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("get with non-numeric turn returns error", func(t *testing.T) {
		_, err := captureStdout(t, func() error {
			return app.Run([]string{"weft", "get", "abc"})
		})
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("log on unknown branch returns error", func(t *testing.T) {
		_, err := captureStdout(t, func() error {
			return app.Run([]string{"weft", "log", "--branch=42"})
		})
		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{
			name:     "no args",
			args:     []string{"weft"},
			expected: false,
		},
		{
			name:     "ask command",
			args:     []string{"weft", "ask"},
			expected: true,
		},
		{
			name:     "loop command",
			args:     []string{"weft", "loop"},
			expected: true,
		},
		{
			name:     "branches command",
			args:     []string{"weft", "branches"},
			expected: true,
		},
		{
			name:     "web command",
			args:     []string{"weft", "web"},
			expected: true,
		},
		{
			name:     "help flag",
			args:     []string{"weft", "--help"},
			expected: true,
		},
		{
			name:     "version flag",
			args:     []string{"weft", "--version"},
			expected: true,
		},
		{
			name:     "short help flag",
			args:     []string{"weft", "-h"},
			expected: true,
		},
		{
			name:     "unknown arg defaults to MCP",
			args:     []string{"weft", "--unknown"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save and restore os.Args
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isCLIMode()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{
			name:     "no args",
			args:     []string{"weft"},
			expected: false,
		},
		{
			name:     "help flag",
			args:     []string{"weft", "--help"},
			expected: true,
		},
		{
			name:     "version flag",
			args:     []string{"weft", "--version"},
			expected: true,
		},
		{
			name:     "help subcommand",
			args:     []string{"weft", "help"},
			expected: true,
		},
		{
			name:     "ask command is not help",
			args:     []string{"weft", "ask"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isHelpOrVersion()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
