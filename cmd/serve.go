// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os/signal"
	"syscall"

	"askbank/cli/internal/logging"
	"askbank/cli/internal/server"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd exposes the agent manager over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `The serve command starts the HTTP API:

  GET    /health
  POST   /api/query            {"query": "...", "session_id": "..."}
  POST   /api/segment          {"query": "..."}
  GET    /api/sessions/:id/history
  DELETE /api/sessions/:id
  GET    /api/tables
  GET    /api/tables/:name
  GET    /api/status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appOptions{})
		if err != nil {
			printFailure(logging.PresentFailure(err))
			return err
		}
		defer a.close()

		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.Addr()
		}
		srv := server.New(server.Deps{
			Manager:      a.manager,
			Segmentation: a.segmentation,
			Tables:       a.tables(),
			Assets:       a.assets,
			Logger:       a.logger,
		})
		pterm.Println(labelStyle.Sprint("→ Listening on ") + addr)
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from SERVER_HOST and SERVER_PORT)")
}
