package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	opts := &runtimeOptions{}

	cmd := &cobra.Command{
		Use:           "petpilot-local",
		Short:         "PetPilot local store maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to the local database file (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a TOML config file")

	cmd.AddCommand(newVersionCommand(out, build))
	cmd.AddCommand(newMigrateCommand(out, opts))
	cmd.AddCommand(newStatusCommand(out, opts))
	cmd.AddCommand(newBackupCommand(out, opts))
	cmd.AddCommand(newRestoreCommand(out, opts))
	cmd.AddCommand(newExplainCommand(out, opts))
	cmd.InitDefaultCompletionCmd()
	return cmd
}

func newVersionCommand(out io.Writer, build BuildInfo) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(build)
			}

			_, err := fmt.Fprintf(out, "version=%s commit=%s build_time=%s\n", build.Version, build.Commit, build.BuildTime)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version as JSON")
	return cmd
}
