// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"askbank/cli/internal/keychain"

	"github.com/spf13/cobra"
)

var logoutKeepDB bool

// logoutCmd removes stored credentials.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API key and database connection",
	Long: `The logout command removes the chat model API key and the saved database
connection from the OS keychain. Environment variables are not touched.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			fmt.Println("❌ Secure storage is not available on this system.")
			return err
		}
		if logoutKeepDB {
			_ = km.ClearAPIKey()
			fmt.Println("✅ API key removed")
			return nil
		}
		_ = km.ClearAll()
		fmt.Println("✅ API key and database connection removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutKeepDB, "keep-db", false, "Keep the saved database connection")
}
