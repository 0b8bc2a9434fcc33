package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
)

// Session is one archived conversation session.
type Session struct {
	ID        string `json:"id"`
	Model     string `json:"model"`
	StartedAt int64  `json:"started_at"`
	TurnCount int    `json:"turn_count"`
}

// InsertSession records a new session.
func InsertSession(db *sql.DB, id, model string, startedAt int64) error {
	_, err := db.Exec(
		`INSERT INTO sessions (id, model, started_at) VALUES (?, ?, ?)`,
		id, model, startedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// InsertTurn appends a turn to the session's archive log. Turns are never
// updated or deleted; in-memory eviction does not touch the archive.
func InsertTurn(db *sql.DB, sessionID string, t history.Turn) error {
	var forkParent sql.NullInt64
	if t.ForkParent != nil {
		forkParent = sql.NullInt64{Int64: int64(*t.ForkParent), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO turns (
			session_id, turn_id, branch_id, system_prompt, user_prompt,
			response, created_at, fork_parent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(t.ID), int64(t.Branch), t.SystemPrompt, t.UserPrompt,
		t.Response, t.CreatedAt, forkParent,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// InsertBranch records a branch's identity and fork point.
func InsertBranch(db *sql.DB, sessionID string, branch history.BranchID, parent *history.TurnID, createdAt int64) error {
	var parentTurn sql.NullInt64
	if parent != nil {
		parentTurn = sql.NullInt64{Int64: int64(*parent), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO branches (session_id, branch_id, parent_turn, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, int64(branch), parentTurn, createdAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func GetSession(db *sql.DB, id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT s.id, s.model, s.started_at,
			(SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s WHERE s.id = ?`, id)

	var s Session
	err := row.Scan(&s.ID, &s.Model, &s.StartedAt, &s.TurnCount)
	if err == sql.ErrNoRows {
		return nil, errors.NewSessionNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &s, nil
}

// LatestSessionID returns the most recently started session's ID, or ""
// when the archive is empty.
func LatestSessionID(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow(`SELECT id FROM sessions ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id, nil
}

// ListSessions returns archived sessions newest-first.
func ListSessions(db *sql.DB, limit int) ([]Session, error) {
	rows, err := db.Query(`
		SELECT s.id, s.model, s.started_at,
			(SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC, s.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Model, &s.StartedAt, &s.TurnCount); err != nil {
			return nil, errors.NewInternal(err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return sessions, nil
}

// LoadTurns returns every archived turn of a session in turn_id order.
func LoadTurns(ctx context.Context, db *sql.DB, sessionID string) ([]history.Turn, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT turn_id, branch_id, system_prompt, user_prompt, response,
			created_at, fork_parent
		FROM turns
		WHERE session_id = ?
		ORDER BY turn_id`, sessionID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	turns := make([]history.Turn, 0)
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return turns, nil
}

// LoadBranchTurns returns a session's archived turns for one branch, in
// turn_id order. This is the full log, independent of in-memory residency.
func LoadBranchTurns(ctx context.Context, db *sql.DB, sessionID string, branch history.BranchID) ([]history.Turn, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT turn_id, branch_id, system_prompt, user_prompt, response,
			created_at, fork_parent
		FROM turns
		WHERE session_id = ? AND branch_id = ?
		ORDER BY turn_id`, sessionID, int64(branch))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	turns := make([]history.Turn, 0)
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return turns, nil
}

// LoadBranches returns a session's branch records in branch_id order.
func LoadBranches(ctx context.Context, db *sql.DB, sessionID string) ([]history.BranchRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT branch_id, parent_turn
		FROM branches
		WHERE session_id = ?
		ORDER BY branch_id`, sessionID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	records := make([]history.BranchRecord, 0)
	for rows.Next() {
		var branchID int64
		var parentTurn sql.NullInt64
		if err := rows.Scan(&branchID, &parentTurn); err != nil {
			return nil, errors.NewInternal(err)
		}
		r := history.BranchRecord{ID: history.BranchID(branchID)}
		if parentTurn.Valid {
			p := history.TurnID(parentTurn.Int64)
			r.ForkParent = &p
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return records, nil
}

func scanTurn(rows *sql.Rows) (history.Turn, error) {
	var t history.Turn
	var turnID, branchID int64
	var forkParent sql.NullInt64
	err := rows.Scan(&turnID, &branchID, &t.SystemPrompt, &t.UserPrompt,
		&t.Response, &t.CreatedAt, &forkParent)
	if err != nil {
		return history.Turn{}, errors.NewInternal(err)
	}
	t.ID = history.TurnID(turnID)
	t.Branch = history.BranchID(branchID)
	if forkParent.Valid {
		p := history.TurnID(forkParent.Int64)
		t.ForkParent = &p
	}
	return t, nil
}
