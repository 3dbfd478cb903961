package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/tui"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/watcher"
	"github.com/pyfreeze/pyfreeze/internal/application"
	"github.com/pyfreeze/pyfreeze/internal/domain"
)

// detectFlags are shared by every command that runs detection.
type detectFlags struct {
	noCache     bool
	interpreter string
	timeout     time.Duration
}

func (f *detectFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Skip the result cache")
	cmd.Flags().StringVar(&f.interpreter, "interpreter", "", "Python interpreter to check module availability against")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Detection deadline (default from config, 30s)")
}

func (f *detectFlags) options() application.DetectOptions {
	return application.DetectOptions{
		Interpreter: f.interpreter,
		Timeout:     f.timeout,
		NoCache:     f.noCache,
	}
}

func newDetectCmd() *cobra.Command {
	var (
		flags       detectFlags
		jsonOutput  bool
		watch       bool
		watchIgnore []string
	)

	cmd := &cobra.Command{
		Use:   "detect <script>",
		Short: "Detect the PyInstaller directives a script needs",
		Long: "Analyze a Python script statically and dynamically, match it against the framework " +
			"knowledge base and print the hidden imports, packages, data files and binaries to bundle.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScriptSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			render := func(r *domain.DetectionResult) error {
				if jsonOutput {
					return renderJSON(cmd, r)
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderDetection(r))
				return nil
			}

			r, err := s.detect.Detect(cmd.Context(), args[0], flags.options())
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}
			if err := render(r); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			stopPruner, err := startPruner(s)
			if err != nil {
				return err
			}
			defer stopPruner()

			w, err := watcher.New(watcher.Config{
				ScriptPath: args[0],
				Ignore:     watchIgnore,
				Logger:     s.logger,
				OnChange: func(ctx context.Context, changed []string) error {
					fmt.Fprintf(cmd.OutOrStdout(), "\nchanged: %s\n", strings.Join(changed, ", "))
					r, err := s.detect.Detect(ctx, args[0], flags.options())
					if err != nil {
						return err
					}
					return render(r)
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "watching for changes, press Ctrl+C to stop")
			return w.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the detection result as JSON")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run detection whenever the script or its directory changes")
	cmd.Flags().StringSliceVar(&watchIgnore, "watch-ignore", nil, "Extra glob patterns (** allowed) to ignore in watch mode")

	return cmd
}

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
