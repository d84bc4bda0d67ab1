package ops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/xmlstore"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Source string `json:"source"`
	Path   string `json:"path,omitempty"` // default: <base>/exports/<name>-<timestamp>.ctd
	Mode   string `json:"mode,omitempty"` // all (default), subtree, node, selection
	NodeID *int64 `json:"node_id,omitempty"`
	Start  int    `json:"start,omitempty"`
	End    *int   `json:"end,omitempty"`
	Case   string `json:"case,omitempty"` // none (default), lower, upper, toggle
}

// Validate implements validation.Validatable.
func (in ExportInput) Validate() error {
	needsNode := in.Mode != "" && in.Mode != xmlstore.ExportAllTree.String()
	return validation.ValidateStruct(&in,
		validation.Field(&in.Source, validation.Required),
		validation.Field(&in.Mode, validation.In(
			xmlstore.ExportAllTree.String(),
			xmlstore.ExportNodeAndSubnodes.String(),
			xmlstore.ExportCurrentNode.String(),
			xmlstore.ExportSelectedText.String(),
		)),
		validation.Field(&in.NodeID, validation.When(needsNode, validation.NotNil)),
		validation.Field(&in.Start, validation.Min(0)),
		validation.Field(&in.Case, validation.In("none", "lower", "upper", "toggle")),
	)
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Nodes      int    `json:"nodes"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes all or part of a source document to a new document. The
// target is written through a temp file and renamed into place.
func Export(ctx context.Context, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	mode := xmlstore.ExportAllTree
	if input.Mode != "" {
		var err error
		if mode, err = xmlstore.ParseExporting(input.Mode); err != nil {
			return nil, err
		}
	}
	transform, err := xmlstore.ParseCaseTransform(input.Case)
	if err != nil {
		return nil, err
	}

	doc, err := LoadDocument(ctx, cfg, input.Source)
	if err != nil {
		return nil, err
	}

	opts := xmlstore.DefaultSaveOptions()
	opts.Exporting = mode
	opts.CaseTransform = transform
	name := strings.TrimSuffix(filepath.Base(input.Source), filepath.Ext(input.Source))
	count := doc.Tree.Len()
	if mode != xmlstore.ExportAllTree {
		n, err := doc.Node(*input.NodeID)
		if err != nil {
			return nil, err
		}
		opts.Current = n
		name = n.Name
		count = 1
		if mode == xmlstore.ExportNodeAndSubnodes {
			count = countSubtree(n)
		}
		if mode == xmlstore.ExportSelectedText {
			opts.StartOffset = input.Start
			opts.EndOffset = endOffset(input.End)
		}
	}

	now := time.Now()
	exportPath := input.Path
	if exportPath == "" {
		if exportPath, err = defaultExportPath(name, now); err != nil {
			return nil, err
		}
	}
	// Default paths are checked too: the node name is user content.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	err = writeAtomic(exportPath, func(w io.Writer) error {
		return doc.Storage.WriteTree(ctx, w, doc.Tree, opts)
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Mode:       mode.String(),
		Nodes:      count,
		ExportedAt: now.Unix(),
	}, nil
}

// countSubtree returns the number of nodes in the subtree rooted at n.
func countSubtree(n *tree.Node) int {
	count := 1
	for _, c := range n.Children() {
		count += countSubtree(c)
	}
	return count
}

// defaultExportPath returns <base>/exports/<name>-<timestamp>.ctd.
func defaultExportPath(name string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	filename := fmt.Sprintf("%s-%s%s", SanitizeForFilename(name), now.Format("2006-01-02T150405"), DocumentExt)
	return filepath.Join(dir, filename), nil
}
