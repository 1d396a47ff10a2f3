package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kosarica/durable/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := initStore(cmd.Context()); err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}

	migrator, err := migrate.New()
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	if err := migrator.Migrate(cmd.Context(), st.Pool(), 0, *logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info().Int("version", migrator.Latest()).Msg("schema up to date")
	return nil
}
