package ops

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/catalog"
	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/xmldoc"
)

// IndexInput contains parameters for the Index operation.
type IndexInput struct {
	Path string `json:"path"`
}

// Validate implements validation.Validatable.
func (in IndexInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required),
	)
}

// IndexOutput contains the result of the Index operation.
type IndexOutput struct {
	DocID   string `json:"doc_id"`
	Path    string `json:"path"`
	Nodes   int    `json:"nodes"`
	Chars   int    `json:"chars"`
	Repairs int    `json:"repairs"`
}

// Index records every node of a document in the catalog, replacing what was
// indexed before for the same path. Node text, code box sources and table
// cells become searchable.
func Index(ctx context.Context, database *sql.DB, cfg *config.Config, input IndexInput) (*IndexOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	doc, err := LoadDocument(ctx, cfg, input.Path)
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(input.Path)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	var records []catalog.NodeRecord
	var walkErr error
	chars := 0
	doc.Tree.Walk(func(n *tree.Node) bool {
		if walkErr != nil {
			return false
		}
		if err := ctx.Err(); err != nil {
			walkErr = errors.NewCancelled("index")
			return false
		}
		rec, err := nodeRecord(n)
		if err != nil {
			walkErr = err
			return false
		}
		chars += rec.Chars
		records = append(records, rec)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	entry := &catalog.Document{
		Path:      absPath,
		Title:     strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath)),
		Bookmarks: xmldoc.JoinInts(doc.Tree.Bookmarks()),
	}
	if err := catalog.ReplaceDocument(ctx, database, entry, records); err != nil {
		return nil, err
	}

	return &IndexOutput{
		DocID:   entry.ID,
		Path:    absPath,
		Nodes:   len(records),
		Chars:   chars,
		Repairs: len(doc.Storage.Repairs()),
	}, nil
}

// nodeRecord materializes n and builds its catalog record.
func nodeRecord(n *tree.Node) (catalog.NodeRecord, error) {
	buf, err := n.TextBuffer()
	if err != nil {
		return catalog.NodeRecord{}, err
	}
	widgets, err := n.AnchoredWidgets(0, -1)
	if err != nil {
		return catalog.NodeRecord{}, err
	}

	parts := []string{buf.Text(0, -1)}
	for _, w := range widgets {
		if text := widgetText(w); text != "" {
			parts = append(parts, text)
		}
	}

	rec := catalog.NodeRecord{
		NodeID:     n.ID,
		Name:       n.Name,
		Path:       NodePath(n),
		Syntax:     n.Syntax,
		Tags:       n.Tags,
		Body:       strings.Join(parts, "\n"),
		Chars:      buf.CharCount() - len(widgets),
		Widgets:    len(widgets),
		TSLastSave: n.TSLastSave,
	}
	if p := n.Parent(); p != nil {
		rec.ParentID = p.ID
	}
	return rec, nil
}

// UnindexInput contains parameters for the Unindex operation.
type UnindexInput struct {
	DocID string `json:"doc_id"`
}

// Validate implements validation.Validatable.
func (in UnindexInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.DocID, validation.Required),
	)
}

// UnindexOutput contains the result of the Unindex operation.
type UnindexOutput struct {
	DocID   string `json:"doc_id"`
	Path    string `json:"path"`
	Removed bool   `json:"removed"`
}

// Unindex drops a document and its nodes from the catalog. The file itself
// is left alone.
func Unindex(ctx context.Context, database *sql.DB, input UnindexInput) (*UnindexOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	doc, err := catalog.GetDocument(ctx, database, input.DocID)
	if err != nil {
		return nil, err
	}
	if err := catalog.DeleteDocument(ctx, database, input.DocID); err != nil {
		return nil, err
	}
	return &UnindexOutput{DocID: doc.ID, Path: doc.Path, Removed: true}, nil
}
