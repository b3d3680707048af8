package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/nfrund/accounts/internal/config"
	"github.com/nfrund/accounts/internal/database"
	"github.com/nfrund/accounts/internal/server"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the account schema to SurrealDB",
	Long: `Define the account table and its indexes, including the UNIQUE email
index. The statements are idempotent and safe to run on every deploy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.GetStoreDriver() != config.StoreDriverSurreal {
			return fmt.Errorf("migrate needs STORE_DRIVER=%s, got %q", config.StoreDriverSurreal, cfg.GetStoreDriver())
		}

		conn, err := do.Invoke[*database.Connection](server.NewInjector(cfg))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
		defer cancel()
		defer conn.Close(context.Background())

		if err := database.EnsureSchema(ctx, conn); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", 30*time.Second, "Maximum time to wait for the schema statements")
}
