package cli

import "github.com/spf13/cobra"

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pyfreeze",
		Short: "Find what PyInstaller misses",
		Long: "pyfreeze analyzes a Python script, works out the hidden imports, packages, " +
			"data files and binaries PyInstaller cannot discover on its own, and runs the build with them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides log_level in .pyfreeze.yaml")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newDirectivesCmd())
	cmd.AddCommand(newCommandCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newMCPCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
