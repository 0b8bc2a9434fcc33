package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/db"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

// Session pairs a session identity with its in-memory history. The history
// holds the most recent turns; the archive in the database holds all of them.
type Session struct {
	ID      string
	Model   string
	History *history.History
}

// NewSession creates a fresh session and records it in the archive.
func NewSession(database *sql.DB, cfg *config.Config) (*Session, error) {
	h, err := history.New(cfg.HistoryCapacity)
	if err != nil {
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := db.InsertSession(database, id, cfg.Model, time.Now().Unix()); err != nil {
		return nil, err
	}

	return &Session{ID: id, Model: cfg.Model, History: h}, nil
}

// ResumeSession rebuilds a session's history from the archive. With an empty
// sessionID it resumes the most recent session, creating a fresh one if the
// archive is empty. Archived turn IDs are preserved, so branch references
// recorded before the restart still resolve.
func ResumeSession(ctx context.Context, database *sql.DB, cfg *config.Config, sessionID string) (*Session, error) {
	if sessionID == "" {
		latest, err := db.LatestSessionID(database)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return NewSession(database, cfg)
		}
		sessionID = latest
	}

	session, err := db.GetSession(database, sessionID)
	if err != nil {
		return nil, err
	}

	branches, err := db.LoadBranches(ctx, database, sessionID)
	if err != nil {
		return nil, err
	}
	turns, err := db.LoadTurns(ctx, database, sessionID)
	if err != nil {
		return nil, err
	}

	h, err := history.Restore(cfg.HistoryCapacity, branches, turns)
	if err != nil {
		return nil, err
	}

	return &Session{ID: session.ID, Model: session.Model, History: h}, nil
}

// Sessions lists archived sessions, newest first.
func Sessions(database *sql.DB, limit int) ([]db.Session, error) {
	return db.ListSessions(database, clampLimit(limit, DefaultSessionLimit, MaxSessionLimit))
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
