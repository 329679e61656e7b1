// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"net/url"
	"os"
	"strings"

	"askbank/cli/internal/config"
	"askbank/cli/internal/keychain"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// dbinfoCmd shows the DSN askbank will use, with the password masked.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show current database connection string",
	Long: `The dbinfo command displays the database connection string (DSN) askbank will
use, with the password masked. The DSN is looked up in ASKBANK_DSN, DATABASE_URL,
the OS keychain and finally the DB_* settings, in that order.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		source := "DB_* settings"
		switch {
		case strings.TrimSpace(os.Getenv("ASKBANK_DSN")) != "":
			source = "ASKBANK_DSN environment variable"
		case strings.TrimSpace(os.Getenv("DATABASE_URL")) != "":
			source = "DATABASE_URL environment variable"
		case cfg.DB.DSN != "":
			source = "config file"
		default:
			if km, err := keychain.GetManager(); err == nil {
				if stored, err := km.LoadDBDSN(); err == nil && strings.TrimSpace(stored) != "" {
					source = "OS keychain"
				}
			}
		}

		pterm.Println("Using DSN from " + source)
		pterm.Println()
		pterm.DefaultBox.
			WithTitle(titleStyle.Sprint("Database Connection")).
			WithPadding(1).
			Println(maskPassword(resolveDSN(cfg)))
		pterm.Println()
		pterm.Println("To update this connection, run: askbank connect")
		pterm.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}

// maskPassword hides the password of a DSN.
func maskPassword(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return maskPasswordSimple(dsn)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return maskPasswordSimple(dsn)
	}
	return u.Redacted()
}

// maskPasswordSimple masks user:password@ in driver-style DSNs such as
// user:pass@tcp(host:3306)/db.
func maskPasswordSimple(dsn string) string {
	atIndex := strings.LastIndex(dsn, "@")
	if atIndex == -1 {
		return dsn
	}
	beforeAt := dsn[:atIndex]
	colonIndex := strings.Index(beforeAt, ":")
	if colonIndex == -1 {
		return dsn
	}
	if protocolEnd := strings.Index(dsn, "://"); protocolEnd != -1 && colonIndex < protocolEnd+3 {
		return dsn
	}
	return dsn[:colonIndex+1] + "***" + dsn[atIndex:]
}
