package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/pixelfly/internal/config"
	"github.com/ironsheep/pixelfly/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// cfg is loaded once before any command runs.
var cfg *config.Config

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "pixelfly",
	Short: "Image enhancement and smart watermarking engine",
	Long: `pixelfly analyzes photos, applies automatic enhancement plans and places
styled text watermarks where they disturb the image least.

Without a subcommand it runs as an MCP server over stdin/stdout.

Examples:
  pixelfly                                   # MCP server
  pixelfly serve --addr :8080                # HTTP API
  pixelfly enhance photo.jpg -o out.jpg --category landscape
  pixelfly watermark a.jpg b.jpg -o marked/ --text "© Studio" --style neon_glow
  pixelfly analyze photo.jpg

Environment variables:
  PIXELFLY_LOG_LEVEL=debug    Enable debug logging
  GEMINI_API_KEY=...          Enable the vision advisory for enhancement`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cfg = config.Load()
		if logLevelFlag != "" {
			cfg.LogLevel = logLevelFlag
		}
		// stdout carries MCP traffic and command output; logs go to stderr.
		logging.Init(cfg.LogLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("pixelfly %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override PIXELFLY_LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd, mcpCmd, serveCmd, enhanceCmd, watermarkCmd, analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("pixelfly failed")
		stop()
		os.Exit(1)
	}
}
