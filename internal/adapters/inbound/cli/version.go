package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/packager"
	"github.com/pyfreeze/pyfreeze/internal/logging"
)

func newVersionCmd() *cobra.Command {
	var interpreter string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show pyfreeze version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "pyfreeze %s (%s)\n", version, commit)
			if interpreter == "" {
				return nil
			}

			v, err := packager.New(0, logging.Discard()).Version(cmd.Context(), interpreter)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "PyInstaller: %v\n", err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PyInstaller %s (%s)\n", v, interpreter)
			return nil
		},
	}

	cmd.Flags().StringVar(&interpreter, "interpreter", "", "Also report the PyInstaller version installed for this interpreter")

	return cmd
}
