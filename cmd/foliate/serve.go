package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/config"
	"github.com/jackzampolin/foliate/internal/home"
	"github.com/jackzampolin/foliate/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Foliate server",
	Long: `Start the Foliate HTTP server.

The server accepts PDF uploads, runs the OCR pipeline, streams progress
over SSE, and serves the assembled EPUBs. Configuration is hot-reloaded
when the config file changes.

Examples:
  foliate serve                    # Start on default port 8080
  foliate serve --port 3000        # Start on custom port
  foliate serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		srv, err := server.New(server.Config{
			Host:         serveHost,
			Port:         servePort,
			ConfigSource: cm,
			Home:         h,
			Logger:       logger,
			DataDir:      h.DataPath(),
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
