package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/errors"
	"github.com/hpungsan/weft/internal/history"
	"github.com/hpungsan/weft/internal/llm"
	"github.com/hpungsan/weft/internal/ops"
	"github.com/hpungsan/weft/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "weft",
		Usage:   "Branching conversation history",
		Version: Version,
		Commands: []*cli.Command{
			askCmd(db, cfg),
			loopCmd(db, cfg),
			forkCmd(db, cfg),
			branchesCmd(db, cfg),
			logCmd(db, cfg),
			recentCmd(db, cfg),
			getCmd(db, cfg),
			exportCmd(db, cfg),
			sessionsCmd(db),
			webCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// sessionFlag is shared by every command that operates on a session.
func sessionFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "session", Usage: "Session ID (default: most recent)"}
}

// askCmd creates the ask command.
func askCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a prompt on a branch (prompt from args, or stdin when piped)",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "branch", Aliases: []string{"b"}, Usage: "Branch to ask on (default: 0)"},
			&cli.StringFlag{Name: "system", Aliases: []string{"s"}, Usage: "System prompt (first turn of a branch only)"},
			&cli.IntFlag{Name: "context-turns", Aliases: []string{"c"}, Usage: "Recent turns to send as context"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "File whose content is appended to the prompt"},
			sessionFlag(),
		},
		Action: func(c *cli.Context) error {
			prompt := strings.Join(c.Args().Slice(), " ")
			if prompt == "" && stdinHasData() {
				var err error
				prompt, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			if prompt == "" {
				return outputError(errors.NewInvalidRequest("prompt is required (as arguments or piped via stdin)"))
			}

			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}
			client, err := llm.New(cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Ask(c.Context, db, cfg, sess, client, ops.AskInput{
				Branch:       history.BranchID(c.Uint64("branch")),
				Prompt:       prompt,
				SystemPrompt: c.String("system"),
				ContextTurns: c.Int("context-turns"),
				IncludeFile:  c.String("file"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// loopCmd creates the loop command.
func loopCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "loop",
		Usage:     "Run an iterative refinement loop on a branch",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "Iterations to run (default 3, max 20)"},
			&cli.Uint64Flag{Name: "branch", Aliases: []string{"b"}, Usage: "Branch to run on (default: 0)"},
			&cli.StringFlag{Name: "system", Aliases: []string{"s"}, Usage: "System prompt (first turn of a branch only)"},
			&cli.IntFlag{Name: "context-turns", Aliases: []string{"c"}, Usage: "Recent turns each iteration sends as context"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "File re-included in every iteration's prompt"},
			sessionFlag(),
		},
		Action: func(c *cli.Context) error {
			prompt := strings.Join(c.Args().Slice(), " ")
			if prompt == "" && stdinHasData() {
				var err error
				prompt, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			if prompt == "" {
				return outputError(errors.NewInvalidRequest("prompt is required (as arguments or piped via stdin)"))
			}

			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}
			client, err := llm.New(cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Loop(c.Context, db, cfg, sess, client, ops.LoopInput{
				Branch:       history.BranchID(c.Uint64("branch")),
				Prompt:       prompt,
				SystemPrompt: c.String("system"),
				Iterations:   c.Int("iterations"),
				ContextTurns: c.Int("context-turns"),
				IncludeFile:  c.String("file"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// forkCmd creates the fork command.
func forkCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "fork",
		Usage:     "Fork a new branch from a turn",
		ArgsUsage: "<turn>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user-prompt", Usage: "Override the seed turn's user prompt"},
			&cli.StringFlag{Name: "system-prompt", Usage: "Override the seed turn's system prompt"},
			sessionFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("turn ID argument is required"))
			}
			turnID, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil {
				return outputError(errors.NewInvalidRequest("turn ID must be a non-negative integer"))
			}

			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}

			input := ops.ForkInput{FromTurn: history.TurnID(turnID)}
			if c.IsSet("user-prompt") {
				p := c.String("user-prompt")
				input.UserPrompt = &p
			}
			if c.IsSet("system-prompt") {
				p := c.String("system-prompt")
				input.SystemPrompt = &p
			}

			output, err := ops.Fork(db, cfg, sess, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// branchesCmd creates the branches command.
func branchesCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "branches",
		Usage: "List branches with turn counts, fork points, and lineage",
		Flags: []cli.Flag{sessionFlag()},
		Action: func(c *cli.Context) error {
			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Branches(sess)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// logCmd creates the log command.
func logCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Show a branch's in-memory turns, oldest first",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "branch", Aliases: []string{"b"}, Usage: "Branch to read (default: 0)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum turns to return"},
			sessionFlag(),
		},
		Action: func(c *cli.Context) error {
			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.BranchLog(sess, ops.LogInput{
				Branch: history.BranchID(c.Uint64("branch")),
				Limit:  c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// recentCmd creates the recent command.
func recentCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "Show the most recent turns across all branches",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum turns to return"},
			sessionFlag(),
		},
		Action: func(c *cli.Context) error {
			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Recent(sess, ops.RecentInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// getCmd creates the get command.
func getCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a single turn by its stable ID",
		ArgsUsage: "<turn>",
		Flags:     []cli.Flag{sessionFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("turn ID argument is required"))
			}
			turnID, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil {
				return outputError(errors.NewInvalidRequest("turn ID must be a non-negative integer"))
			}

			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.GetTurn(sess, history.TurnID(turnID))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a branch's full archived transcript to a file",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "branch", Aliases: []string{"b"}, Usage: "Branch to export (default: 0)"},
			&cli.StringFlag{Name: "format", Value: "text", Usage: "Export format: text|jsonl"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: generated under ~/.weft/exports)"},
			sessionFlag(),
		},
		Action: func(c *cli.Context) error {
			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Export(c.Context, db, cfg, sess, ops.ExportInput{
				Branch: history.BranchID(c.Uint64("branch")),
				Format: c.String("format"),
				Path:   c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// sessionsCmd creates the sessions command.
func sessionsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List archived sessions, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum sessions to return"},
		},
		Action: func(c *cli.Context) error {
			sessions, err := ops.Sessions(db, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"sessions": sessions})
		},
	}
}

// webCmd creates the web command.
func webCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the web UI for a session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 7133, Usage: "Port to listen on"},
			sessionFlag(),
		},
		Action: func(c *cli.Context) error {
			sess, err := resolveSession(c, db, cfg)
			if err != nil {
				return outputError(err)
			}
			client, err := llm.New(cfg)
			if err != nil {
				return outputError(err)
			}

			srv := web.NewServer(db, cfg, sess, client, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// resolveSession resumes the session named by --session, or the most recent
// one (creating a fresh session when the archive is empty).
func resolveSession(c *cli.Context, db *sql.DB, cfg *config.Config) (*ops.Session, error) {
	return ops.ResumeSession(c.Context, db, cfg, c.String("session"))
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if weftErr, ok := err.(*errors.WeftError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", weftErr.Code, weftErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
