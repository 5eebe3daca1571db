package cli

import (
	"fmt"
	"io"

	"github.com/naz-az/petpilot-local/internal/storage"
	"github.com/spf13/cobra"
)

func newExplainCommand(out io.Writer, opts *runtimeOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "explain <statement>",
		Short:   "Print the query plan for a statement",
		Example: `  petpilot-local explain "SELECT * FROM bookings WHERE status = 'pending'"`,
		Args:    cobra.ExactArgs(1),
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

			steps, err := storage.Explain(cmd.Context(), store.DB(), args[0])
			if err != nil {
				return err
			}
			for _, step := range steps {
				if _, err := fmt.Fprintf(out, "%d|%d|%s\n", step.ID, step.Parent, step.Detail); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
