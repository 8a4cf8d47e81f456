package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crepilot/crepilot/db"
	"github.com/crepilot/crepilot/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := db.Migrate(cfg.DatabaseURL()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		newLogger().Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
