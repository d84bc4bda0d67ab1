// Package mcp exposes the document operations as MCP tools over stdio.
package mcp

import (
	"database/sql"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/arbor/internal/config"
)

// KnownTypes lists all valid tool type prefixes.
var KnownTypes = []string{"doc", "catalog"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"doc_inspect": {
		def:     inspectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInspect },
	},
	"doc_node_text": {
		def:     nodeTextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNodeText },
	},
	"doc_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"doc_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"doc_repair": {
		def:     repairToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRepair },
	},
	"catalog_index": {
		def:     indexToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIndex },
	},
	"catalog_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"catalog_remove": {
		def:     unindexToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUnindex },
	},
	"catalog_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
}

// AllToolNames returns the registered tool names in sorted order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns the names in the list that are not tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns the names in the list that are not tool types.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool returns the prefix before the first underscore
// ("doc_export" → "doc").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// disabledTools expands cfg.DisabledTypes and adds cfg.DisabledTools.
func disabledTools(cfg *config.Config) map[string]bool {
	disabled := make(map[string]bool)
	for name := range toolRegistry {
		if slices.Contains(cfg.DisabledTypes, GetTypeForTool(name)) {
			disabled[name] = true
		}
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}
	return disabled
}

// NewServer creates an MCP server with every tool not disabled by cfg.
// Catalog tools are skipped when db is nil.
func NewServer(db *sql.DB, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"arbor",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(db, cfg)
	disabled := disabledTools(cfg)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		if db == nil && GetTypeForTool(name) == "catalog" {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(db *sql.DB, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(db, cfg, version))
}
