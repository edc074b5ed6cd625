package cli

import (
	"fmt"

	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending schema migrations to the configured database.

SQLite databases are migrated automatically on open; PostgreSQL
deployments run this before starting serve or worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireContainer()
		if err != nil {
			return err
		}
		applied, err := migrations.Run(cmd.Context(), a.Container.DBConn)
		if err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(applied) == 0 {
			fmt.Fprintln(out, "Database is up to date.")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(out, "applied %s\n", name)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations that have not been applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireContainer()
		if err != nil {
			return err
		}
		pending, err := migrations.Pending(cmd.Context(), a.Container.DBConn)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "driver: %s\n", a.Container.DBDriver)
		if len(pending) == 0 {
			fmt.Fprintln(out, "No pending migrations.")
			return nil
		}
		for _, name := range pending {
			fmt.Fprintf(out, "pending %s\n", name)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
