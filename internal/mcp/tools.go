package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var askToolDef = mcp.NewTool("chat_ask",
	mcp.WithDescription("Send a prompt on a conversation branch. The branch's recent turns are sent as context; the completed turn is recorded."),
	mcp.WithString("prompt", mcp.Required(), mcp.Description("The user prompt to send")),
	mcp.WithNumber("branch", mcp.Description("Branch to ask on (default: 0, the root branch)")),
	mcp.WithString("system_prompt", mcp.Description("System prompt; sent upstream only when the branch has no prior context")),
	mcp.WithNumber("context_turns", mcp.Description("How many recent branch turns to send as context (default from config)")),
	mcp.WithString("include_file", mcp.Description("Path to a file whose content is appended to the prompt")),
)

var loopToolDef = mcp.NewTool("chat_loop",
	mcp.WithDescription("Run an iterative refinement loop on a branch: each iteration sends the current prompt with branch context, records the turn, and feeds the response into the next prompt."),
	mcp.WithString("prompt", mcp.Required(), mcp.Description("The task the loop keeps working on")),
	mcp.WithNumber("iterations", mcp.Description("Number of iterations to run (default 3, max 20)")),
	mcp.WithNumber("branch", mcp.Description("Branch to run on (default: 0)")),
	mcp.WithString("system_prompt", mcp.Description("System prompt; sent upstream only when the branch has no prior context")),
	mcp.WithNumber("context_turns", mcp.Description("How many recent branch turns each iteration sends as context")),
	mcp.WithString("include_file", mcp.Description("Path to a file whose content is re-included in every iteration's prompt")),
)

var forkToolDef = mcp.NewTool("chat_fork",
	mcp.WithDescription("Fork a new branch from an existing turn. The new branch starts with a seed turn carrying the source turn's prompts."),
	mcp.WithNumber("turn", mcp.Required(), mcp.Description("Turn ID to fork from (must still be in memory)")),
	mcp.WithString("system_prompt", mcp.Description("Override the seed turn's system prompt")),
	mcp.WithString("user_prompt", mcp.Description("Override the seed turn's user prompt")),
)

var branchesToolDef = mcp.NewTool("chat_branches",
	mcp.WithDescription("List all branches of the session with turn counts, fork points, and lineage back to the root branch."),
)

var logToolDef = mcp.NewTool("chat_log",
	mcp.WithDescription("Return a branch's in-memory turns, oldest first. Turns evicted from memory are omitted."),
	mcp.WithNumber("branch", mcp.Description("Branch to read (default: 0)")),
	mcp.WithNumber("limit", mcp.Description("Maximum turns to return (default 20, max 100)")),
)

var recentToolDef = mcp.NewTool("chat_recent",
	mcp.WithDescription("Return the most recent turns across all branches, most recent last."),
	mcp.WithNumber("limit", mcp.Description("Maximum turns to return (default 10, max 100)")),
)

var turnToolDef = mcp.NewTool("chat_turn",
	mcp.WithDescription("Return a single turn by its stable ID. Evicted turns report NOT_FOUND."),
	mcp.WithNumber("turn", mcp.Required(), mcp.Description("Turn ID to fetch")),
)

var exportToolDef = mcp.NewTool("chat_export",
	mcp.WithDescription("Export a branch's full archived transcript to a file, including turns already evicted from memory."),
	mcp.WithNumber("branch", mcp.Description("Branch to export (default: 0)")),
	mcp.WithString("format", mcp.Description("Export format: \"text\" (default) or \"jsonl\"")),
	mcp.WithString("path", mcp.Description("Destination path; defaults to a generated name under ~/.weft/exports")),
)

var sessionsToolDef = mcp.NewTool("chat_sessions",
	mcp.WithDescription("List archived sessions, newest first."),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return (default 20, max 100)")),
)
