package cmd

import (
	"context"
	"log/slog"

	"github.com/nfrund/accounts/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API and block until SIGINT or SIGTERM, then drain
in-flight requests and close the event bus and database.

Examples:
  accounts serve
  accounts serve --addr :9090
  STORE_DRIVER=memory accounts serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.ServerAddr = serveAddr
		}

		s, err := server.New(server.NewInjector(cfg))
		if err != nil {
			slog.Error("Failed to initialize server", "error", err)
			return err
		}

		ctx, stop := server.SignalContext(context.Background())
		defer stop()
		return s.Start(ctx, cfg.GetServerAddr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides SERVER_ADDR)")
}
