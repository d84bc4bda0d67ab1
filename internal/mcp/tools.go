package mcp

import "github.com/mark3labs/mcp-go/mcp"

var inspectToolDef = mcp.NewTool(
	"doc_inspect",
	mcp.WithDescription("Load a .ctd document and return its node outline, bookmarks and any duplicate node IDs repaired while loading. Node content is not returned."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the .ctd document."),
	),
	mcp.WithNumber("max_depth",
		mcp.Description("Deepest level to list; 1 lists top-level nodes only. 0 or absent lists all."),
		mcp.Min(0),
	),
)

var nodeTextToolDef = mcp.NewTool(
	"doc_node_text",
	mcp.WithDescription("Return the plain text of one node, optionally limited to a character range, with the widgets anchored in that range."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the .ctd document."),
	),
	mcp.WithNumber("node_id",
		mcp.Required(),
		mcp.Description("unique_id of the node."),
	),
	mcp.WithNumber("start",
		mcp.Description("First character offset (default 0)."),
	),
	mcp.WithNumber("end",
		mcp.Description("Offset past the last character; absent means the end of the node."),
	),
	mcp.WithBoolean("markup",
		mcp.Description("Also return the range as an XML fragment."),
	),
)

var exportToolDef = mcp.NewTool(
	"doc_export",
	mcp.WithDescription("Write all or part of a document to a new .ctd file. The target must be directly inside the exports directory or an allowed path."),
	mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Path of the document to export from."),
	),
	mcp.WithString("path",
		mcp.Description("Target path; defaults to the exports directory."),
	),
	mcp.WithString("mode",
		mcp.Description("What to export."),
		mcp.Enum("all", "subtree", "node", "selection"),
	),
	mcp.WithNumber("node_id",
		mcp.Description("Node to export; required unless mode is all."),
	),
	mcp.WithNumber("start",
		mcp.Description("Selection start offset (selection mode)."),
	),
	mcp.WithNumber("end",
		mcp.Description("Selection end offset (selection mode)."),
	),
	mcp.WithString("case",
		mcp.Description("Case transform applied to exported text."),
		mcp.Enum("none", "lower", "upper", "toggle"),
	),
)

var importToolDef = mcp.NewTool(
	"doc_import",
	mcp.WithDescription("Copy every node of a source document under a node of a target document and rewrite the target. Imported nodes get fresh IDs."),
	mcp.WithString("target",
		mcp.Required(),
		mcp.Description("Document to import into; rewritten in place."),
	),
	mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Document to import from."),
	),
	mcp.WithNumber("parent_id",
		mcp.Description("Node to import under; 0 or absent imports at top level."),
	),
)

var repairToolDef = mcp.NewTool(
	"doc_repair",
	mcp.WithDescription("Give every node with a duplicated ID a fresh one and rewrite the document when anything changed."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the .ctd document."),
	),
	mcp.WithBoolean("dry_run",
		mcp.Description("Report repairs without writing."),
	),
)

var indexToolDef = mcp.NewTool(
	"catalog_index",
	mcp.WithDescription("Record every node of a document in the search catalog, replacing any earlier index of the same file."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the .ctd document."),
	),
)

var searchToolDef = mcp.NewTool(
	"catalog_search",
	mcp.WithDescription("Full-text search over indexed node names, tags, text, code boxes and table cells."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Words to match; every word must appear."),
	),
	mcp.WithString("doc_id",
		mcp.Description("Restrict results to one indexed document."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)."),
	),
	mcp.WithNumber("offset",
		mcp.Description("Results to skip."),
	),
)

var listToolDef = mcp.NewTool(
	"catalog_list",
	mcp.WithDescription("List indexed documents, most recently indexed first."),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)."),
	),
	mcp.WithNumber("offset",
		mcp.Description("Results to skip."),
	),
)

var unindexToolDef = mcp.NewTool(
	"catalog_remove",
	mcp.WithDescription("Drop a document from the search catalog. The file is not touched."),
	mcp.WithString("doc_id",
		mcp.Required(),
		mcp.Description("Catalog ID returned by catalog_index or catalog_list."),
	),
)
