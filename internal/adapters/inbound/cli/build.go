package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/gitinfo"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/packager"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/tui"
	"github.com/pyfreeze/pyfreeze/internal/application"
	"github.com/pyfreeze/pyfreeze/internal/domain"
)

func newBuildCmd() *cobra.Command {
	var (
		flags detectFlags
		grace time.Duration
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "build <script>",
		Short: "Detect directives and run PyInstaller with them",
		Long: "Run detection, then `<interpreter> -m PyInstaller` with the detected directives and the " +
			"build options from .pyfreeze.yaml. Ctrl+C interrupts PyInstaller and records the run as cancelled.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScriptSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			// Build history is best-effort.
			var hist domain.BuildHistory
			if h, err := openHistory(); err != nil {
				s.logger.Warn("build history unavailable", "error", err)
			} else {
				defer h.Close()
				hist = h
			}

			svc := application.NewBuildService(
				s.detect,
				packager.New(grace, s.logger),
				hist,
				gitinfo.New(),
				s.logger,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			report, err := svc.Build(ctx, args[0], application.BuildOptions{
				Detect: flags.options(),
				OnLine: func(line string) {
					if !quiet {
						fmt.Fprintln(out, line)
					}
				},
			})
			if report != nil {
				fmt.Fprint(out, tui.RenderBuild(report.Run, report.Findings))
			}
			if errors.Is(err, domain.ErrScriptNotFound) {
				return err
			}
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&grace, "grace", packager.DefaultGrace, "How long PyInstaller may take to exit after Ctrl+C before it is killed")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo PyInstaller output")

	return cmd
}
