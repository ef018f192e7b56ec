package main

import (
	"fmt"

	"github.com/jthomaschappell/echolingo-resurgence/internal/config"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Apply the schema for the configured SQL store. Migrations are
idempotent and safe to re-run.

Examples:
  ECHOLINGO_STORE_DRIVER=sqlite ECHOLINGO_STORE_DSN=echolingo.db echolingo migrate
  ECHOLINGO_STORE_DRIVER=postgres DATABASE_URL=postgres://... echolingo migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Driver == config.DriverMemory {
			return fmt.Errorf("migrate requires store.driver sqlite or postgres")
		}
		st, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		defer st.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", cfg.Store.Driver)
		return nil
	},
}
