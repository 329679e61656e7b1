// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"askbank/cli/internal/logging"
	"askbank/cli/internal/progress"
	"askbank/cli/internal/session"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var chatSession string

const chatHelp = `Commands:
  help            show this help
  status          database, model and agent status
  history         conversation history of this session
  clear           clear the conversation history
  tables          list tables
  table <name>    describe a table
  quit, exit, q   leave
Anything else is answered as a question, e.g. 查询客户总数`

// chatCmd is the interactive question loop.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var obs progress.Observer
		if interactive() {
			obs = progress.NewRenderer(verbose).Observer()
		}
		a, err := newApp(ctx, appOptions{Observer: obs, Persist: chatSession != ""})
		if err != nil {
			printFailure(logging.PresentFailure(err))
			return err
		}
		defer a.close()

		sid, err := a.sessions.Create(chatSession, "")
		if err != nil {
			return err
		}
		pterm.Println(titleStyle.Sprint("askbank ") + pterm.FgGray.Sprintf("%s · session %s", a.cfg.LLM.Model, sid))
		pterm.Println(pterm.FgGray.Sprint("Type 'help' for commands."))

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for {
			pterm.Print(pterm.FgCyan.Sprint("\n> "))
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if done := handleChatLine(ctx, a, sid, line); done {
				pterm.Println("Bye.")
				return nil
			}
		}
	},
}

// handleChatLine runs one chat command or question and reports whether the
// loop should end.
func handleChatLine(ctx context.Context, a *app, sid, line string) bool {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return true
	case "help":
		pterm.Println(chatHelp)
		return false
	case "status":
		printStatus(a.manager.Status(ctx))
		return false
	case "history":
		printHistory(a, sid)
		return false
	case "clear":
		if err := a.manager.Clear(sid); err != nil {
			printFailure(err.Error())
		} else {
			pterm.Println("History cleared.")
		}
		return false
	case "tables":
		_ = listTables(ctx, a)
		return false
	case "table":
		if len(fields) < 2 {
			pterm.Println("Usage: table <name>")
			return false
		}
		_ = describeTable(ctx, a, fields[1])
		return false
	}

	resp, err := a.manager.Process(ctx, sid, line)
	if err != nil {
		printFailure(logging.PresentFailure(err))
		return false
	}
	pterm.Println()
	renderAgent(resp)
	return false
}

func printHistory(a *app, sid string) {
	entries, err := a.manager.History(sid)
	if err != nil {
		printFailure(err.Error())
		return
	}
	if len(entries) == 0 {
		pterm.Println("No history yet.")
		return
	}
	for _, e := range entries {
		who := pterm.FgCyan.Sprint("you")
		if e.Role == session.RoleAssistant {
			who = pterm.FgGreen.Sprint("askbank")
		}
		pterm.Println(fmt.Sprintf("%s %s %s", pterm.FgGray.Sprint(e.Timestamp.Format("15:04:05")), who, e.Content))
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Resume a persisted session by id")
}
