package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/tui"
)

var errCacheDisabled = errors.New("the result cache is disabled (cache.disabled in .pyfreeze.yaml)")

func newCacheCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
	}
	cmd.PersistentFlags().StringVar(&projectPath, "path", ".", "Project directory whose .pyfreeze.yaml selects the cache")

	cmd.AddCommand(newCacheClearCmd(&projectPath))
	cmd.AddCommand(newCachePruneCmd(&projectPath))
	cmd.AddCommand(newCacheStatsCmd(&projectPath))
	return cmd
}

func newCacheClearCmd(projectPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached detection result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, *projectPath)
			if err != nil {
				return err
			}
			defer s.Close()
			if s.store == nil {
				return errCacheDisabled
			}

			if err := s.store.Clear(); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", s.store.Dir())
			return nil
		},
	}
}

func newCachePruneCmd(projectPath *string) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached results older than a maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, *projectPath)
			if err != nil {
				return err
			}
			defer s.Close()
			if s.store == nil {
				return errCacheDisabled
			}

			age := s.cfg.Cache.MaxAge
			if cmd.Flags().Changed("max-age") {
				age = maxAge
			}
			removed, err := s.store.Prune(age)
			if err != nil {
				return fmt.Errorf("pruning cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Maximum entry age (default cache.max_age)")

	return cmd
}

func newCacheStatsCmd(projectPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, *projectPath)
			if err != nil {
				return err
			}
			defer s.Close()
			if s.store == nil {
				return errCacheDisabled
			}

			stats := s.store.Stats()
			if jsonOutput {
				return renderJSON(cmd, stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderCacheStats(stats))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}
