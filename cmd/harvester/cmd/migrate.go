package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discovr-events/harvester/internal/config"
	"github.com/discovr-events/harvester/internal/storage/postgres"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for migrate")
		}
		if err := postgres.MigrateUp(cfg.Database.URL, migrationsPath); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", postgres.DefaultMigrationsPath, "migrations directory")
}
