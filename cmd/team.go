// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"askbank/cli/internal/groupchat"
	"askbank/cli/internal/logging"

	"github.com/spf13/cobra"
)

var (
	teamJSON     bool
	teamMaxRound int
)

// teamCmd runs the coordinator/text2sql/segmentation group chat.
var teamCmd = &cobra.Command{
	Use:   "team <question>",
	Short: "Let the agent team decide who answers a question",
	Long: `The team command runs a round-robin group chat: a coordinator picks the text2sql
or segmentation agent, that agent answers, and the coordinator closes the chat.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, restore := progressView(teamJSON)
		defer restore()

		a, err := newApp(cmd.Context(), appOptions{Observer: obs})
		if err != nil {
			restore()
			printFailure(logging.PresentFailure(err))
			return err
		}
		defer a.close()

		chat := groupchat.New(groupchat.NewTeam(a.text2sql, a.segmentation), teamMaxRound, a.logger)
		res := chat.Run(cmd.Context(), groupchat.Request{Question: strings.Join(args, " ")})
		restore()

		if teamJSON {
			return printJSON(res)
		}
		renderTeam(res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(teamCmd)
	teamCmd.Flags().BoolVar(&teamJSON, "json", false, "Print the transcript as JSON")
	teamCmd.Flags().IntVar(&teamMaxRound, "max-round", groupchat.DefaultMaxRound, "Maximum number of turns")
}
