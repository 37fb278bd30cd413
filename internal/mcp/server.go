// Package mcp exposes project operations as MCP tools over stdio, so agent
// clients can create, build, and manage generated Python projects.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jmorand/pyforge/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"project_create": {
		def:     createToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"project_build": {
		def:     buildToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBuild },
	},
	"project_cancel": {
		def:     cancelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCancel },
	},
	"project_run": {
		def:     runToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRun },
	},
	"project_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"project_show": {
		def:     showToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShow },
	},
	"project_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"project_install": {
		def:     installToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInstall },
	},
	"project_recreate": {
		def:     recreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecreate },
	},
	"project_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"project_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with pyforge tools registered.
// Tools listed in deps.Cfg.DisabledTools are excluded from registration.
func NewServer(deps *ops.Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"pyforge",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool)
	for _, name := range deps.Cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps *ops.Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}
