package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/tui"
)

func newTemplatesCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Browse the framework knowledge base",
		Long:  "List the framework templates pyfreeze applies, including any added through templates_file.",
	}
	cmd.PersistentFlags().StringVar(&projectPath, "path", ".", "Project directory whose .pyfreeze.yaml may add templates")

	cmd.AddCommand(newTemplatesListCmd(&projectPath))
	cmd.AddCommand(newTemplatesShowCmd(&projectPath))
	return cmd
}

func newTemplatesListCmd(projectPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, *projectPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if jsonOutput {
				return renderJSON(cmd, s.kb.Templates())
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderTemplates(s.kb.Templates()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output templates as JSON")

	return cmd
}

func newTemplatesShowCmd(projectPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one template in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, *projectPath)
			if err != nil {
				return err
			}
			defer s.Close()

			t, ok := s.kb.Template(args[0])
			if !ok {
				return fmt.Errorf("unknown template %q (see `pyfreeze templates list`)", args[0])
			}
			if jsonOutput {
				return renderJSON(cmd, t)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderTemplate(t))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the template as JSON")

	return cmd
}
