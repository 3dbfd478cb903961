package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/config"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/history"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/tui"
)

// openHistory opens the build database in the per-user data directory.
func openHistory() (*history.SQLiteHistory, error) {
	dir := config.DataDir()
	if dir == "" {
		return nil, errors.New("no user cache directory on this platform")
	}
	return history.Open(dir)
}

func newHistoryCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHistory()
			if err != nil {
				return fmt.Errorf("opening build history: %w", err)
			}
			defer h.Close()

			runs, err := h.List(limit)
			if err != nil {
				return fmt.Errorf("loading build history: %w", err)
			}
			if jsonOutput {
				return renderJSON(cmd, runs)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of builds to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output history as JSON")

	return cmd
}
