package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const templatesURI = "pyfreeze://templates"

// registerResources registers all pyfreeze MCP resources on the given server.
func registerResources(s *server.MCPServer, deps Deps) {
	s.AddResource(
		mcplib.NewResource(
			templatesURI,
			"Framework Templates",
			mcplib.WithResourceDescription("The framework knowledge base: indicators, hidden imports, packages and data files per framework"),
			mcplib.WithMIMEType("application/json"),
		),
		handleTemplatesResource(deps),
	)
}

func handleTemplatesResource(deps Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		data, err := json.MarshalIndent(deps.Detect.KnowledgeBase().Templates(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling templates: %w", err)
		}

		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      templatesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}
