package ops

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/tree"
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Target   string `json:"target"`
	Source   string `json:"source"`
	ParentID int64  `json:"parent_id,omitempty"` // 0 = top level
}

// Validate implements validation.Validatable.
func (in ImportInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Target, validation.Required),
		validation.Field(&in.Source, validation.Required),
		validation.Field(&in.ParentID, validation.Min(int64(0))),
	)
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Target   string    `json:"target"`
	Imported []NodeRef `json:"imported"`
	Count    int       `json:"count"`
}

// Import copies every node of the source document under a parent node of the
// target document and rewrites the target. Imported nodes get fresh IDs. If
// the source cannot be decoded the target is left untouched.
func Import(ctx context.Context, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := ValidatePath(input.Target, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	if err := ValidatePath(input.Source, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	doc, err := LoadDocument(ctx, cfg, input.Target)
	if err != nil {
		return nil, err
	}
	var parent *tree.Node
	if input.ParentID != 0 {
		if parent, err = doc.Node(input.ParentID); err != nil {
			return nil, err
		}
	}

	data, err := readDocument(ctx, input.Source)
	if err != nil {
		return nil, err
	}
	top, err := doc.Storage.ImportNodesFromBytes(data, doc.Tree, parent)
	if err != nil {
		return nil, err
	}

	if err := doc.Save(ctx, cfg); err != nil {
		return nil, err
	}

	out := &ImportOutput{Target: input.Target, Imported: make([]NodeRef, 0, len(top))}
	for _, n := range top {
		out.Imported = append(out.Imported, NodeRef{ID: n.ID, Name: n.Name})
		out.Count += countSubtree(n)
	}
	return out, nil
}
