package web

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
	"github.com/hpungsan/weft/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI. All handlers operate
// on the single live session the server was started with.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	sess     *ops.Session
	client   ops.Completer
	renderer *Renderer
}

// HandleBranches handles GET /branches — list branches with counts and lineage.
func (h *Handlers) HandleBranches(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Branches(h.sess)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "branches", BranchesPageData{
		PageData: PageData{
			Title:   "Branches",
			Version: h.renderer.version,
			Nav:     "branches",
			Session: h.sess.ID,
		},
		Branches: result.Branches,
	})
}

// HandleTranscript handles GET /branches/{id} — the branch transcript with
// rendered markdown responses and the ask form.
func (h *Handlers) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	branch, err := parseBranchID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	limit := parseIntParam(r, "limit", ops.MaxLogLimit)
	result, err := ops.BranchLog(h.sess, ops.LogInput{Branch: branch, Limit: limit})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	forkParent, err := h.sess.History.ForkPoint(branch)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	turns := make([]TranscriptTurn, 0, len(result.Turns))
	for _, t := range result.Turns {
		turns = append(turns, TranscriptTurn{Turn: t, Rendered: renderMarkdown(t.Response)})
	}

	h.renderer.renderPage(w, r, "transcript", TranscriptPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Branch %d", branch),
			Version: h.renderer.version,
			Nav:     "branches",
			Session: h.sess.ID,
		},
		Branch:     branch,
		ForkParent: forkParent,
		Turns:      turns,
		TotalTurns: h.sess.History.BranchSize(branch),
		Context:    ops.EstimateContext(result.Turns),
	})
}

// HandleAsk handles POST /branches/{id}/ask — send a prompt on a branch.
func (h *Handlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	branch, err := parseBranchID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input := ops.AskInput{
		Branch:       branch,
		Prompt:       r.FormValue("prompt"),
		SystemPrompt: r.FormValue("system_prompt"),
	}
	if turns := r.FormValue("context_turns"); turns != "" {
		n, err := strconv.Atoi(turns)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("context_turns must be an integer"))
			return
		}
		input.ContextTurns = n
	}

	result, err := ops.Ask(r.Context(), h.db, h.cfg, h.sess, h.client, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/branches/%d", branch), http.StatusFound)
}

// HandleFork handles POST /branches/{id}/fork — fork a new branch from one of
// this branch's turns. The branch in the path scopes the form; the turn field
// picks the fork point.
func (h *Handlers) HandleFork(w http.ResponseWriter, r *http.Request) {
	if _, err := parseBranchID(r); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	turnStr := r.FormValue("turn")
	if turnStr == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("turn is required"))
		return
	}
	turnID, err := strconv.ParseUint(turnStr, 10, 64)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("turn must be a non-negative integer"))
		return
	}

	input := ops.ForkInput{FromTurn: history.TurnID(turnID)}
	if p := r.FormValue("user_prompt"); p != "" {
		input.UserPrompt = &p
	}
	if p := r.FormValue("system_prompt"); p != "" {
		input.SystemPrompt = &p
	}

	result, err := ops.Fork(h.db, h.cfg, h.sess, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/branches/%d", result.Branch), http.StatusFound)
}

// HandleRecent handles GET /recent — the most recent turns across branches.
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Recent(h.sess, ops.RecentInput{Limit: parseIntParam(r, "limit", 0)})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "recent", RecentPageData{
		PageData: PageData{
			Title:   "Recent",
			Version: h.renderer.version,
			Nav:     "recent",
			Session: h.sess.ID,
		},
		Turns: result.Turns,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parseBranchID parses the {id} path value as a branch ID.
func parseBranchID(r *http.Request) (history.BranchID, error) {
	s := r.PathValue("id")
	if s == "" {
		return 0, errors.NewInvalidRequest("branch ID is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest("branch ID must be a non-negative integer")
	}
	return history.BranchID(v), nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
