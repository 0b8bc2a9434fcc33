package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
	"github.com/hpungsan/weft/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers. All tools operate on
// the one live session the server was started with.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	sess   *ops.Session
	client ops.Completer
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, sess *ops.Session, client ops.Completer) *Handlers {
	return &Handlers{db: db, cfg: cfg, sess: sess, client: client}
}

// Request types for each tool

// AskRequest represents the arguments for chat_ask.
type AskRequest struct {
	Branch       uint64 `json:"branch,omitempty"`
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	ContextTurns int    `json:"context_turns,omitempty"`
	IncludeFile  string `json:"include_file,omitempty"`
}

// LoopRequest represents the arguments for chat_loop.
type LoopRequest struct {
	Branch       uint64 `json:"branch,omitempty"`
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Iterations   int    `json:"iterations,omitempty"`
	ContextTurns int    `json:"context_turns,omitempty"`
	IncludeFile  string `json:"include_file,omitempty"`
}

// ForkRequest represents the arguments for chat_fork.
type ForkRequest struct {
	Turn         uint64  `json:"turn"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	UserPrompt   *string `json:"user_prompt,omitempty"`
}

// LogRequest represents the arguments for chat_log.
type LogRequest struct {
	Branch uint64 `json:"branch,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// RecentRequest represents the arguments for chat_recent.
type RecentRequest struct {
	Limit int `json:"limit,omitempty"`
}

// TurnRequest represents the arguments for chat_turn.
type TurnRequest struct {
	Turn uint64 `json:"turn"`
}

// ExportRequest represents the arguments for chat_export.
type ExportRequest struct {
	Branch uint64 `json:"branch,omitempty"`
	Format string `json:"format,omitempty"`
	Path   string `json:"path,omitempty"`
}

// SessionsRequest represents the arguments for chat_sessions.
type SessionsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// Handler implementations

// HandleAsk handles the chat_ask tool call.
func (h *Handlers) HandleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AskRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Ask(ctx, h.db, h.cfg, h.sess, h.client, ops.AskInput{
		Branch:       history.BranchID(input.Branch),
		Prompt:       input.Prompt,
		SystemPrompt: input.SystemPrompt,
		ContextTurns: input.ContextTurns,
		IncludeFile:  input.IncludeFile,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLoop handles the chat_loop tool call.
func (h *Handlers) HandleLoop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LoopRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Loop(ctx, h.db, h.cfg, h.sess, h.client, ops.LoopInput{
		Branch:       history.BranchID(input.Branch),
		Prompt:       input.Prompt,
		SystemPrompt: input.SystemPrompt,
		Iterations:   input.Iterations,
		ContextTurns: input.ContextTurns,
		IncludeFile:  input.IncludeFile,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFork handles the chat_fork tool call.
func (h *Handlers) HandleFork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ForkRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fork(h.db, h.cfg, h.sess, ops.ForkInput{
		FromTurn:     history.TurnID(input.Turn),
		SystemPrompt: input.SystemPrompt,
		UserPrompt:   input.UserPrompt,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBranches handles the chat_branches tool call.
func (h *Handlers) HandleBranches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Branches(h.sess)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLog handles the chat_log tool call.
func (h *Handlers) HandleLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LogRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.BranchLog(h.sess, ops.LogInput{
		Branch: history.BranchID(input.Branch),
		Limit:  input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRecent handles the chat_recent tool call.
func (h *Handlers) HandleRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Recent(h.sess, ops.RecentInput{Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTurn handles the chat_turn tool call.
func (h *Handlers) HandleTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TurnRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetTurn(h.sess, history.TurnID(input.Turn))
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the chat_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, h.sess, ops.ExportInput{
		Branch: history.BranchID(input.Branch),
		Format: input.Format,
		Path:   input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessions handles the chat_sessions tool call.
func (h *Handlers) HandleSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	sessions, err := ops.Sessions(h.db, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"sessions": sessions, "current": h.sess.ID})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if weftErr, ok := err.(*errors.WeftError); ok {
		errorObj := map[string]any{
			"code":    weftErr.Code,
			"message": weftErr.Message,
			"status":  weftErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if weftErr.Code != errors.ErrInternal && weftErr.Details != nil {
			errorObj["details"] = weftErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
