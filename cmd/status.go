// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	"askbank/cli/internal/agent"
	"askbank/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusJSON bool

// statusCmd reports database, model and agent state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database, model and agent status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			printFailure(logging.PresentFailure(err))
			return err
		}
		defer a.close()

		st := a.manager.Status(cmd.Context())
		if statusJSON {
			return printJSON(st)
		}
		printStatus(st)
		return nil
	},
}

func printStatus(st agent.Status) {
	check := func(ok bool) string {
		if ok {
			return pterm.FgGreen.Sprint("✓")
		}
		return pterm.FgRed.Sprint("✗")
	}
	db := fmt.Sprintf("%d tables", st.Database.Tables)
	if !st.Database.Connected {
		db = st.Database.Error
	}
	model := st.Model.Name
	if !st.Model.Available {
		model += " (no API key, run: askbank login)"
	}

	pterm.Println(labelStyle.Sprint("→ State:    ") + st.State)
	pterm.Println(labelStyle.Sprint("→ Database: ") + check(st.Database.Connected) + " " + db)
	pterm.Println(labelStyle.Sprint("→ Model:    ") + check(st.Model.Available) + " " + model)
	pterm.Println(labelStyle.Sprint("→ Sessions: ") + fmt.Sprint(st.Sessions))
	pterm.Println(labelStyle.Sprint("→ Agents:   ") + strings.Join(st.Agents, ", "))
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")
}
