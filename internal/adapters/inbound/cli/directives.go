package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/domain/command"
)

func newDirectivesCmd() *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "directives <script>",
		Short: "Print the PyInstaller directives for a script, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScriptSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.detect.Detect(cmd.Context(), args[0], flags.options())
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}
			for _, arg := range command.Directives(r, "") {
				fmt.Fprintln(cmd.OutOrStdout(), arg)
			}
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newCommandCmd() *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "command <script>",
		Short: "Print the full PyInstaller command line for a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScriptSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.detect.Detect(cmd.Context(), args[0], flags.options())
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}

			argv := append([]string{"pyinstaller"}, command.Build(command.FromConfig(s.cfg, r.ScriptPath), r)...)
			quoted := make([]string, len(argv))
			for i, a := range argv {
				quoted[i] = shellQuote(a)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(quoted, " "))
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

// shellQuote single-quotes arguments containing whitespace or shell
// metacharacters so a POSIX shell reads them back verbatim.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'`$&|;<>()*?[]{}!\\#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
