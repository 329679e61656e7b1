// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"

	"askbank/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// tablesCmd lists tables or describes one.
var tablesCmd = &cobra.Command{
	Use:   "tables [name]",
	Short: "List database tables or describe one table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			printFailure(logging.PresentFailure(err))
			return err
		}
		defer a.close()

		if len(args) == 1 {
			return describeTable(cmd.Context(), a, args[0])
		}
		return listTables(cmd.Context(), a)
	},
}

func listTables(ctx context.Context, a *app) error {
	if err := a.requireDB(); err != nil {
		printFailure(logging.PresentFailure(err))
		return err
	}
	tables, err := a.inspector.ListTables(ctx)
	if err != nil {
		printFailure(logging.PresentFailure(err))
		return err
	}
	data := pterm.TableData{{"Table", "Comment"}}
	for _, t := range tables {
		data = append(data, []string{t.Name, t.Comment})
	}
	pterm.Println(titleStyle.Sprintf("%d tables", len(tables)))
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func describeTable(ctx context.Context, a *app, name string) error {
	if err := a.requireDB(); err != nil {
		printFailure(logging.PresentFailure(err))
		return err
	}
	t, err := a.assets.AnalyzeTable(ctx, name)
	if err != nil {
		printFailure(err.Error())
		return err
	}
	renderTable(t, nil)
	return nil
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}
