package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pyfreeze/pyfreeze/internal/application"
	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/domain/command"
)

// registerTools registers all pyfreeze MCP tools on the given server.
func registerTools(s *server.MCPServer, deps Deps) {
	// 1. pyfreeze_detect
	s.AddTool(
		mcplib.NewTool("pyfreeze_detect",
			mcplib.WithDescription("Analyze a Python script and return the detection result (hidden imports, collect-all packages, data files, binaries, missing modules, conflicts) as JSON"),
			mcplib.WithString("script",
				mcplib.Required(),
				mcplib.Description("Path of the script, absolute or relative to the project"),
			),
			mcplib.WithString("interpreter", mcplib.Description("Python interpreter to check module availability against")),
			mcplib.WithBoolean("no_cache", mcplib.Description("Ignore cached results")),
		),
		handleDetect(deps),
	)

	// 2. pyfreeze_directives
	s.AddTool(
		mcplib.NewTool("pyfreeze_directives",
			mcplib.WithDescription("Return the PyInstaller arguments for a script: the directives alone and the full command line"),
			mcplib.WithString("script",
				mcplib.Required(),
				mcplib.Description("Path of the script, absolute or relative to the project"),
			),
		),
		handleDirectives(deps),
	)

	// 3. pyfreeze_templates
	s.AddTool(
		mcplib.NewTool("pyfreeze_templates",
			mcplib.WithDescription("List the framework templates, or return one when name is given"),
			mcplib.WithString("name", mcplib.Description("Template name, e.g. flask or numpy")),
		),
		handleTemplates(deps),
	)

	// 4. pyfreeze_cache_clear
	s.AddTool(
		mcplib.NewTool("pyfreeze_cache_clear",
			mcplib.WithDescription("Delete every cached detection result"),
		),
		handleCacheClear(deps),
	)
}

func handleDetect(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		script, err := request.RequireString("script")
		if err != nil {
			return errorResult(err.Error()), nil
		}

		deps.Logger.Debug("tool call", "tool", "pyfreeze_detect", "script", script)
		r, err := deps.Detect.Detect(ctx, resolve(deps.ProjectPath, script), application.DetectOptions{
			Interpreter: request.GetString("interpreter", ""),
			NoCache:     request.GetBool("no_cache", false),
		})
		if err != nil {
			return detectError(err), nil
		}
		return jsonResult(r)
	}
}

type directivesResponse struct {
	Directives []string `json:"directives"`
	Command    []string `json:"command"`
	CacheHit   bool     `json:"cache_hit"`
}

func handleDirectives(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		script, err := request.RequireString("script")
		if err != nil {
			return errorResult(err.Error()), nil
		}

		deps.Logger.Debug("tool call", "tool", "pyfreeze_directives", "script", script)
		r, err := deps.Detect.Detect(ctx, resolve(deps.ProjectPath, script), application.DetectOptions{})
		if err != nil {
			return detectError(err), nil
		}

		cfg := deps.Detect.Config()
		return jsonResult(directivesResponse{
			Directives: nonNil(command.Directives(r, "")),
			Command:    append([]string{"pyinstaller"}, command.Build(command.FromConfig(cfg, r.ScriptPath), r)...),
			CacheHit:   r.CacheHit,
		})
	}
}

func handleTemplates(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		kb := deps.Detect.KnowledgeBase()
		name := request.GetString("name", "")
		if name == "" {
			return jsonResult(kb.Templates())
		}
		t, ok := kb.Template(name)
		if !ok {
			return errorResult(fmt.Sprintf("unknown template %q", name)), nil
		}
		return jsonResult(t)
	}
}

func handleCacheClear(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		if deps.Cache == nil {
			return errorResult("the result cache is disabled"), nil
		}
		if err := deps.Cache.Clear(); err != nil {
			deps.Logger.Warn("clearing cache", "error", err)
			return errorResult(fmt.Sprintf("clearing cache failed: %v", err)), nil
		}
		return textResult("cache cleared"), nil
	}
}

func resolve(projectPath, script string) string {
	if filepath.IsAbs(script) || projectPath == "" {
		return script
	}
	return filepath.Join(projectPath, script)
}

func detectError(err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrScriptNotFound):
		return errorResult(err.Error())
	case errors.Is(err, domain.ErrDetectionTimeout):
		return errorResult(fmt.Sprintf("%v; retry with a simpler script or raise timeout in .pyfreeze.yaml", err))
	default:
		return errorResult(fmt.Sprintf("detection failed: %v", err))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// jsonResult marshals v into a text content result.
func jsonResult(v interface{}) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// textResult returns a plain text content result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
	}
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
