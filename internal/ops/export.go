package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/db"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

// Export formats.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Branch history.BranchID
	Format string // "text" (default) or "jsonl"
	Path   string // optional, default: ~/.weft/exports/<session>-b<branch>_NNN_<timestamp>.<ext>
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader represents the header line in a JSONL export file.
type ExportHeader struct {
	WeftExport    bool             `json:"_weft_export"`
	SchemaVersion string           `json:"schema_version"`
	Session       string           `json:"session"`
	Branch        history.BranchID `json:"branch"`
	ExportedAt    int64            `json:"exported_at"`
}

// Export writes a branch's full archived transcript to a file. The archive
// is the source, so the export includes turns already evicted from memory.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, sess *Session, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	format := input.Format
	if format == "" {
		format = FormatText
	}
	var ext string
	switch format {
	case FormatText:
		ext = ".txt"
	case FormatJSONL:
		ext = ".jsonl"
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (want %q or %q)", format, FormatText, FormatJSONL))
	}

	// The branch must be known to the session, even if fully evicted.
	if _, err := sess.History.ForkPoint(input.Branch); err != nil {
		return nil, err
	}

	turns, err := db.LoadBranchTurns(ctx, database, sess.ID, input.Branch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("export")
		}
		return nil, err
	}

	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(sess.ID, input.Branch, ext, now)
		if err != nil {
			return nil, err
		}
	}

	// Validate ALL paths (both user-provided and default) for security.
	if err := ValidatePath(exportPath, PathCheckWrite, ext, cfg); err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve existing file on failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	var count int
	switch format {
	case FormatJSONL:
		count, err = writeJSONL(ctx, file, sess, input.Branch, turns, exportedAt)
	case FormatText:
		count, err = writeText(ctx, file, sess, input.Branch, turns, now)
	}
	if err != nil {
		return nil, err
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// Check if destination is a symlink (os.Rename would follow it)
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// Finalize export by renaming temp file into place.
	//
	// Note: On Windows, os.Rename fails if the destination exists. We intentionally
	// fail safely (preserving the existing file) instead of doing a non-atomic
	// delete+rename that could lose the original if rename fails.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: exportedAt,
	}, nil
}

// writeJSONL writes a header line followed by one JSON object per turn.
func writeJSONL(ctx context.Context, file *os.File, sess *Session, branch history.BranchID, turns []history.Turn, exportedAt int64) (int, error) {
	header := ExportHeader{
		WeftExport:    true,
		SchemaVersion: "1.0",
		Session:       sess.ID,
		Branch:        branch,
		ExportedAt:    exportedAt,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if _, err := file.Write(append(headerJSON, '\n')); err != nil {
		return 0, errors.NewInternal(err)
	}

	count := 0
	for _, t := range turns {
		select {
		case <-ctx.Done():
			return count, errors.NewCancelled("export")
		default:
		}

		recordJSON, err := json.Marshal(t)
		if err != nil {
			return count, errors.NewInternal(err)
		}
		if _, err := file.Write(append(recordJSON, '\n')); err != nil {
			return count, errors.NewInternal(err)
		}
		count++
	}
	return count, nil
}

// writeText writes a human-readable transcript: a short header, then each
// turn's non-blank fields labeled by role.
func writeText(ctx context.Context, file *os.File, sess *Session, branch history.BranchID, turns []history.Turn, now time.Time) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation %s, branch %d\n", sess.ID, branch)
	fmt.Fprintf(&b, "Exported %s\n\n", now.Format(time.RFC3339))
	if _, err := file.WriteString(b.String()); err != nil {
		return 0, errors.NewInternal(err)
	}

	count := 0
	for _, t := range turns {
		select {
		case <-ctx.Done():
			return count, errors.NewCancelled("export")
		default:
		}

		var tb strings.Builder
		fmt.Fprintf(&tb, "--- turn %d ---\n", t.ID)
		if s := strings.TrimSpace(t.SystemPrompt); s != "" {
			fmt.Fprintf(&tb, "system: %s\n", s)
		}
		if u := strings.TrimSpace(t.UserPrompt); u != "" {
			fmt.Fprintf(&tb, "user: %s\n", u)
		}
		if r := strings.TrimSpace(t.Response); r != "" {
			fmt.Fprintf(&tb, "assistant: %s\n", r)
		}
		tb.WriteString("\n")
		if _, err := file.WriteString(tb.String()); err != nil {
			return count, errors.NewInternal(err)
		}
		count++
	}
	return count, nil
}

// defaultExportPath generates the default export path. A counter is appended
// before the timestamp so rapid exports of the same branch never collide:
// <session>-b<branch>_NNN_<timestamp>.<ext>
func defaultExportPath(sessionID string, branch history.BranchID, ext string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	base := SanitizeForFilename(fmt.Sprintf("%s-b%d", sessionID, branch))
	timestamp := now.Format("2006-01-02T150405")

	for n := 1; n < 1000; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%03d_%s%s", base, n, timestamp, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", errors.NewInternal(fmt.Errorf("could not find a free export filename in %s", dir))
}
