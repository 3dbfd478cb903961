package mcp

import (
	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pyfreeze/pyfreeze/internal/application"
	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/logging"
)

// Deps are the services the MCP tools call into.
type Deps struct {
	// ProjectPath resolves relative script paths.
	ProjectPath string
	Detect      *application.DetectService
	// Cache backs pyfreeze_cache_clear. Nil when caching is disabled.
	Cache  domain.ResultCache
	Logger *log.Logger
}

// NewPyfreezeMCPServer creates a new MCP server with all pyfreeze tools and
// resources registered.
func NewPyfreezeMCPServer(deps Deps, version string) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	s := server.NewMCPServer(
		"pyfreeze",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, deps)
	registerResources(s, deps)

	return s
}
