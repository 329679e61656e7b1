// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"askbank/cli/internal/agent"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/segmentation"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var segmentJSON bool

// segmentCmd compares a target customer group with its control group.
var segmentCmd = &cobra.Command{
	Use:   "segment <question>",
	Short: "Compare a customer segment with a control group",
	Long: `The segment command splits a customer analysis question into a target group and
a complementary control group, queries both and explains the difference.

Example: askbank segment "分析高价值客户的存款特征"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, restore := progressView(segmentJSON)
		defer restore()

		a, err := newApp(cmd.Context(), appOptions{Observer: obs})
		if err != nil {
			restore()
			printFailure(logging.PresentFailure(err))
			return err
		}
		defer a.close()

		resp := a.segmentation.Run(cmd.Context(), segmentation.Request{
			Question:  strings.Join(args, " "),
			SessionID: agent.DefaultSessionID,
		})
		restore()

		if segmentJSON {
			return printJSON(resp)
		}
		pterm.Println()
		renderSegmentation(resp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)
	segmentCmd.Flags().BoolVar(&segmentJSON, "json", false, "Print the full response as JSON")
}
