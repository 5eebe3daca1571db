package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/naz-az/petpilot-local/internal/app"
	"github.com/spf13/cobra"
)

func newBackupCommand(out io.Writer, opts *runtimeOptions) *cobra.Command {
	var (
		outputPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export a snapshot of all tables to an archive",
		Example: "  petpilot-local backup --db ./petpilot.db --output ./petpilot.snapshot.tar.gz\n" +
			"  petpilot-local backup --output ./petpilot.snapshot.tar.gz --overwrite",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputPath) == "" {
				return fmt.Errorf("backup requires --output")
			}

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

			manifest, err := app.NewBackupService(store).Export(cmd.Context(), app.ExportRequest{
				OutputPath: outputPath,
				Overwrite:  overwrite,
			})
			if err != nil {
				return err
			}

			rt.logger.Info("snapshot exported", "snapshot_id", manifest.SnapshotID, "output", outputPath)
			totalRows := 0
			for _, file := range manifest.Files {
				totalRows += file.Rows
			}
			_, err = fmt.Fprintf(out, "exported snapshot %s (%d tables, %d rows) to %s\n",
				manifest.SnapshotID, len(manifest.Files), totalRows, outputPath)
			return err
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "Archive path to write")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing archive")
	return cmd
}

func newRestoreCommand(out io.Writer, opts *runtimeOptions) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:     "restore",
		Short:   "Restore all tables from a snapshot archive",
		Example: "  petpilot-local restore --db ./petpilot.db --from ./petpilot.snapshot.tar.gz",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(inputPath) == "" {
				return fmt.Errorf("restore requires --from")
			}

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

			manifest, err := app.NewBackupService(store).Import(cmd.Context(), app.ImportRequest{
				InputPath: inputPath,
			})
			if err != nil {
				return err
			}

			rt.logger.Info("snapshot restored", "snapshot_id", manifest.SnapshotID, "input", inputPath)
			_, err = fmt.Fprintf(out, "restored snapshot %s (created %s)\n", manifest.SnapshotID, manifest.CreatedAt)
			return err
		},
	}

	cmd.Flags().StringVar(&inputPath, "from", "", "Archive path to read")
	return cmd
}
