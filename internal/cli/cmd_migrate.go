package cli

import (
	"fmt"
	"io"

	"github.com/naz-az/petpilot-local/internal/storage"
	"github.com/spf13/cobra"
)

func newMigrateCommand(out io.Writer, opts *runtimeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Example: "  petpilot-local migrate --db ./petpilot.db\n" +
			"  petpilot-local migrate --config ./petpilot.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			// Open runs pending migrations before returning.
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := storage.AppliedMigrations(cmd.Context(), store.DB())
			if err != nil {
				return err
			}
			rt.logger.Info("migrations up to date",
				"db", store.Path(),
				"schema_version", storage.CurrentSchemaVersion(),
				"applied", len(applied),
			)
			_, err = fmt.Fprintf(out, "schema version %d (%d migrations applied)\n", storage.CurrentSchemaVersion(), len(applied))
			return err
		},
	}
}

func newStatusCommand(out io.Writer, opts *runtimeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied migrations and schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := storage.AppliedMigrations(cmd.Context(), store.DB())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "database: %s\n", store.Path())
			for _, record := range applied {
				fmt.Fprintf(out, "v%d applied at %s\n", record.Version, record.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			_, err = fmt.Fprintf(out, "schema version: %d\n", storage.CurrentSchemaVersion())
			return err
		},
	}
}
