package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/pixelfly/internal/httpapi"
	"github.com/ironsheep/pixelfly/internal/orchestrator"
	"github.com/ironsheep/pixelfly/internal/server"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdin/stdout",
	Long: `Run the MCP server on stdin/stdout.

This server communicates via MCP protocol over stdin/stdout.
Configure it in your MCP client (e.g., Claude Desktop).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMCP(cmd.Context())
	},
}

var (
	addrFlag  string
	debugFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [--addr <addr>] [--debug]",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		metrics := httpapi.NewMetrics()

		orch, err := newOrchestrator(ctx, orchestrator.WithObserver(metrics))
		if err != nil {
			return err
		}

		addr := cfg.HTTPAddr
		if addrFlag != "" {
			addr = addrFlag
		}
		srv := httpapi.New(orch, metrics, httpapi.Options{
			Version:      Version,
			Debug:        debugFlag,
			MaxBodyBytes: cfg.MaxRequestBytes,
		})
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (default PIXELFLY_HTTP_ADDR or :8080)")
	serveCmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable debugging (pprof) - WARNING: do not enable in production")
}

func runMCP(ctx context.Context) error {
	orch, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	log.Debug().Str("version", Version).Str("built", BuildTime).Str("commit", GitCommit).Msg("starting MCP server")
	return server.New(orch, Version).Run(ctx)
}
