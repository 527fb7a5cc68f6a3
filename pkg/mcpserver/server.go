// Package mcpserver exposes hypergen's validate, run, and schema
// operations as MCP tools for AI agents.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with hypergen tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"hypergen",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("hypergen/validate",
			mcp.WithDescription("Validate a hypergen recipe YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the recipe file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("hypergen/run",
			mcp.WithDescription("Execute a hypergen recipe. Variables must be fully supplied; the server never prompts."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the recipe file")),
			mcp.WithString("cwd", mcp.Description("Directory output paths resolve against (defaults to the recipe's directory)")),
			mcp.WithObject("vars", mcp.Description("Variable values keyed by name")),
			mcp.WithObject("answers", mcp.Description("Answers for ai blocks keyed by output key")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("hypergen/schema",
			mcp.WithDescription("Export the recipe JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
