// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"askbank/cli/internal/agent"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/session"
	"askbank/cli/internal/text2sql"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	queryJSON    bool
	querySession string
)

// queryCmd answers one question through the text2sql pipeline.
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer one question with generated SQL",
	Long: `The query command turns a natural-language question into read-only SQL, runs it
against the configured database and explains the result.

Example: askbank query "查询客户总数"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		obs, restore := progressView(queryJSON)
		defer restore()

		a, err := newApp(cmd.Context(), appOptions{Observer: obs, Persist: querySession != ""})
		if err != nil {
			restore()
			printFailure(logging.PresentFailure(err))
			return err
		}
		defer a.close()

		sid := querySession
		if sid == "" {
			sid = agent.DefaultSessionID
		}
		sc, err := a.sessions.Get(sid)
		if err != nil {
			return err
		}
		resp := a.text2sql.Run(cmd.Context(), text2sql.Request{Question: question, SessionID: sid, History: sc.Turns()})
		restore()

		if querySession != "" {
			_ = a.sessions.Append(sid, session.RoleUser, question, nil)
			if resp.Success {
				_ = a.sessions.Append(sid, session.RoleAssistant, resp.Explanation, map[string]any{"sql_query": resp.SQLQuery, "row_count": resp.RowCount})
			}
		}

		if queryJSON {
			return printJSON(resp)
		}
		pterm.Println()
		renderQuery(resp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the full response as JSON")
	queryCmd.Flags().StringVar(&querySession, "session", "", "Persisted session whose history gives context")
}
