package cmd

import (
	"fmt"
	"os"

	"github.com/nfrund/accounts/internal/config"
	"github.com/nfrund/accounts/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Account service",
	Long: `accounts serves the account JSON API: registration, login, session
tokens, password changes and resets, and avatar uploads.

Configuration is read from the environment, optionally seeded from a .env
file in the working directory.

Use "accounts [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.New(cfg.GetLogFormat(), cfg.GetLogLevel())
	return cfg, nil
}
