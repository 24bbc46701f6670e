package admin

import (
	"fmt"

	"github.com/cloo-solutions/kbchat/internal/config"
	"github.com/cloo-solutions/kbchat/internal/database"
	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply all pending up migrations to KBCHAT_DATABASE_URL and print the resulting schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("migrations")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			version, err := database.Migrate(cfg.DatabaseURL, source, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")
	return cmd
}
