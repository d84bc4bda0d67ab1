package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// InspectRequest represents the arguments for doc_inspect.
type InspectRequest struct {
	Path     string `json:"path"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// NodeTextRequest represents the arguments for doc_node_text.
type NodeTextRequest struct {
	Path   string `json:"path"`
	NodeID *int64 `json:"node_id"`
	Start  int    `json:"start,omitempty"`
	End    *int   `json:"end,omitempty"`
	Markup bool   `json:"markup,omitempty"`
}

// ExportRequest represents the arguments for doc_export.
type ExportRequest struct {
	Source string `json:"source"`
	Path   string `json:"path,omitempty"`
	Mode   string `json:"mode,omitempty"`
	NodeID *int64 `json:"node_id,omitempty"`
	Start  int    `json:"start,omitempty"`
	End    *int   `json:"end,omitempty"`
	Case   string `json:"case,omitempty"`
}

// ImportRequest represents the arguments for doc_import.
type ImportRequest struct {
	Target   string `json:"target"`
	Source   string `json:"source"`
	ParentID int64  `json:"parent_id,omitempty"`
}

// RepairRequest represents the arguments for doc_repair.
type RepairRequest struct {
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// IndexRequest represents the arguments for catalog_index.
type IndexRequest struct {
	Path string `json:"path"`
}

// SearchRequest represents the arguments for catalog_search.
type SearchRequest struct {
	Query  string `json:"query"`
	DocID  string `json:"doc_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ListRequest represents the arguments for catalog_list.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// UnindexRequest represents the arguments for catalog_remove.
type UnindexRequest struct {
	DocID string `json:"doc_id"`
}

// HandleInspect handles the doc_inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inspect(ctx, h.cfg, ops.InspectInput{
		Path:     input.Path,
		MaxDepth: input.MaxDepth,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNodeText handles the doc_node_text tool call.
func (h *Handlers) HandleNodeText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NodeTextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NodeText(ctx, h.cfg, ops.NodeTextInput{
		Path:   input.Path,
		NodeID: input.NodeID,
		Start:  input.Start,
		End:    input.End,
		Markup: input.Markup,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the doc_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.cfg, ops.ExportInput{
		Source: input.Source,
		Path:   input.Path,
		Mode:   input.Mode,
		NodeID: input.NodeID,
		Start:  input.Start,
		End:    input.End,
		Case:   input.Case,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the doc_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.cfg, ops.ImportInput{
		Target:   input.Target,
		Source:   input.Source,
		ParentID: input.ParentID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRepair handles the doc_repair tool call.
func (h *Handlers) HandleRepair(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RepairRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Repair(ctx, h.cfg, ops.RepairInput{
		Path:   input.Path,
		DryRun: input.DryRun,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleIndex handles the catalog_index tool call.
func (h *Handlers) HandleIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IndexRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Index(ctx, h.db, h.cfg, ops.IndexInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the catalog_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.db, ops.SearchInput{
		Query:  input.Query,
		DocID:  input.DocID,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the catalog_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListDocuments(ctx, h.db, ops.ListInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUnindex handles the catalog_remove tool call.
func (h *Handlers) HandleUnindex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UnindexRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Unindex(ctx, h.db, ops.UnindexInput{DocID: input.DocID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var aErr *errors.ArborError
	if stderrors.As(err, &aErr) {
		msg := aErr.Message
		if prefix, ok := strings.CutSuffix(err.Error(), aErr.Error()); ok && prefix != "" {
			msg = prefix + msg
		}
		errorObj := map[string]any{
			"code":    aErr.Code,
			"message": msg,
			"status":  aErr.Status,
		}
		// Internal details may carry file paths or SQL text.
		if aErr.Code != errors.ErrInternal && aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
