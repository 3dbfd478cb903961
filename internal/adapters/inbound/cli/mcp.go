package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/pyfreeze/pyfreeze/internal/adapters/inbound/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the pyfreeze MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd())
	return cmd
}

func newMCPServeCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start pyfreeze MCP server (stdio)",
		Long: "Start the pyfreeze MCP server using stdio transport. This lets AI coding assistants " +
			"detect PyInstaller directives and browse the framework templates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				projectPath = "."
			}
			s, err := openSession(cmd, projectPath)
			if err != nil {
				return err
			}
			defer s.Close()

			stopPruner, err := startPruner(s)
			if err != nil {
				return err
			}
			defer stopPruner()

			srv := mcpadapter.NewPyfreezeMCPServer(mcpadapter.Deps{
				ProjectPath: s.projectDir,
				Detect:      s.detect,
				Cache:       s.resultCache(),
				Logger:      s.logger,
			}, version)
			return server.ServeStdio(srv)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path (defaults to current working directory)")

	return cmd
}
