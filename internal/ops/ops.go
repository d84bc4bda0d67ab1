// Package ops implements the document operations shared by the CLI, the MCP
// server and the web UI.
package ops

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/widget"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// PathSeparator joins node names in a node path.
const PathSeparator = " / "

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// NodeRef identifies a node in a document.
type NodeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NodeSummary describes one node without its content.
type NodeSummary struct {
	ID         int64  `json:"id"`
	ParentID   int64  `json:"parent_id,omitempty"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Syntax     string `json:"syntax"`
	Tags       string `json:"tags,omitempty"`
	Depth      int    `json:"depth"`
	Children   int    `json:"children"`
	ReadOnly   bool   `json:"readonly,omitempty"`
	Bookmarked bool   `json:"bookmarked,omitempty"`
}

// WidgetSummary describes one anchored widget.
type WidgetSummary struct {
	Kind          widget.Kind `json:"kind"`
	Offset        int         `json:"offset"`
	Justification string      `json:"justification"`
	Detail        string      `json:"detail,omitempty"`
}

// summarizeNode builds the summary of n.
func summarizeNode(n *tree.Node, bookmarked bool) NodeSummary {
	s := NodeSummary{
		ID:         n.ID,
		Name:       n.Name,
		Path:       NodePath(n),
		Syntax:     n.Syntax,
		Tags:       n.Tags,
		Depth:      n.Depth(),
		Children:   len(n.Children()),
		ReadOnly:   n.ReadOnly,
		Bookmarked: bookmarked,
	}
	if p := n.Parent(); p != nil {
		s.ParentID = p.ID
	}
	return s
}

// NodePath joins the names from the top-level ancestor down to n.
func NodePath(n *tree.Node) string {
	return strings.Join(n.Path(), PathSeparator)
}

// summarizeWidget describes w for listings.
func summarizeWidget(w widget.Widget) WidgetSummary {
	s := WidgetSummary{
		Kind:          w.Kind(),
		Offset:        w.Offset(),
		Justification: w.Justification(),
	}
	switch v := w.(type) {
	case *widget.ImagePng:
		s.Detail = fmt.Sprintf("%d bytes", len(v.Blob))
		if v.Link != "" {
			s.Detail += " link " + v.Link
		}
	case *widget.Anchor:
		s.Detail = v.Name
	case *widget.EmbeddedFile:
		s.Detail = fmt.Sprintf("%s (%d bytes)", v.FileName, len(v.Blob))
	case *widget.CodeBox:
		s.Detail = fmt.Sprintf("%s, %d chars", v.Syntax, len([]rune(v.Text)))
	case *widget.Table:
		cols := 0
		if len(v.Rows) > 0 {
			cols = len(v.Rows[0])
		}
		s.Detail = fmt.Sprintf("%dx%d", len(v.Rows), cols)
	}
	return s
}

// widgetText returns the searchable text carried by w.
func widgetText(w widget.Widget) string {
	switch v := w.(type) {
	case *widget.CodeBox:
		return v.Text
	case *widget.Table:
		var cells []string
		for _, row := range v.Rows {
			cells = append(cells, row...)
		}
		return strings.Join(cells, " ")
	case *widget.EmbeddedFile:
		return v.FileName
	case *widget.Anchor:
		return v.Name
	}
	return ""
}

// validateInput runs the ozzo-validation rules of v and converts a failure
// into INVALID_REQUEST.
func validateInput(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	return nil
}

// clampLimit applies the default and maximum page size.
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}

// endOffset converts an optional end offset into the codec convention where a
// negative end means the end of the buffer.
func endOffset(end *int) int {
	if end == nil {
		return -1
	}
	return *end
}
