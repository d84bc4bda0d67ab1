package ops

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/xmlstore"
)

// InspectInput contains parameters for the Inspect operation.
type InspectInput struct {
	Path     string `json:"path"`
	MaxDepth int    `json:"max_depth,omitempty"` // 0 = unlimited; 1 = top-level only
}

// Validate implements validation.Validatable.
func (in InspectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required),
		validation.Field(&in.MaxDepth, validation.Min(0)),
	)
}

// InspectOutput contains the outline of a document.
type InspectOutput struct {
	Path      string            `json:"path"`
	Session   string            `json:"session"`
	NodeCount int               `json:"node_count"`
	Bookmarks []int64           `json:"bookmarks"`
	Repairs   []xmlstore.Repair `json:"repairs,omitempty"`
	Nodes     []NodeSummary     `json:"nodes"`
}

// Inspect loads a document and reports its outline in document order, the
// bookmark list and any duplicate IDs repaired while loading. Node content
// is not materialized.
func Inspect(ctx context.Context, cfg *config.Config, input InspectInput) (*InspectOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	doc, err := LoadDocument(ctx, cfg, input.Path)
	if err != nil {
		return nil, err
	}

	nodes := make([]NodeSummary, 0, doc.Tree.Len())
	doc.Tree.Walk(func(n *tree.Node) bool {
		nodes = append(nodes, summarizeNode(n, doc.IsBookmarked(n.ID)))
		return input.MaxDepth == 0 || n.Depth()+1 < input.MaxDepth
	})

	bookmarks := doc.Tree.Bookmarks()
	if bookmarks == nil {
		bookmarks = []int64{}
	}
	return &InspectOutput{
		Path:      input.Path,
		Session:   doc.Storage.Session(),
		NodeCount: doc.Tree.Len(),
		Bookmarks: bookmarks,
		Repairs:   doc.Storage.Repairs(),
		Nodes:     nodes,
	}, nil
}
