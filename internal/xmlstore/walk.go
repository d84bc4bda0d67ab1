package xmlstore

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/widget"
	"github.com/hpungsan/arbor/internal/xmldoc"
)

// Exporting selects what a save writes.
type Exporting int

const (
	// ExportNone is a regular save of the whole document.
	ExportNone Exporting = iota
	// ExportAllTree writes the whole document to another file.
	ExportAllTree
	// ExportNodeAndSubnodes writes the current node and its descendants.
	ExportNodeAndSubnodes
	// ExportCurrentNode writes the current node without its children.
	ExportCurrentNode
	// ExportSelectedText writes a text range of the current node.
	ExportSelectedText
)

var exportingNames = map[Exporting]string{
	ExportNone:            "none",
	ExportAllTree:         "all",
	ExportNodeAndSubnodes: "subtree",
	ExportCurrentNode:     "node",
	ExportSelectedText:    "selection",
}

func (e Exporting) String() string {
	if name, ok := exportingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Exporting(%d)", int(e))
}

// ParseExporting maps a mode name to its Exporting value.
func ParseExporting(name string) (Exporting, error) {
	for e, n := range exportingNames {
		if strings.EqualFold(n, name) {
			return e, nil
		}
	}
	return ExportNone, errors.NewInvalidRequest(fmt.Sprintf("unknown export mode %q", name))
}

// wholeTree reports whether the mode writes bookmarks and every top-level node.
func (e Exporting) wholeTree() bool {
	return e == ExportNone || e == ExportAllTree
}

// recurses reports whether the mode writes descendants of a written node.
func (e Exporting) recurses() bool {
	return e != ExportCurrentNode && e != ExportSelectedText
}

// SaveOptions controls a save.
type SaveOptions struct {
	Exporting Exporting

	// Current is the node written by the single-node export modes.
	Current *tree.Node

	// StartOffset and EndOffset bound the text written for every node.
	// EndOffset < 0 means the end of the buffer.
	StartOffset int
	EndOffset   int

	CaseTransform CaseTransform
}

// DefaultSaveOptions returns options for a regular full save.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{Exporting: ExportNone, EndOffset: -1, CaseTransform: CaseNone}
}

// walkContext carries the mutable state of one load or import walk.
type walkContext struct {
	store     *tree.Store
	importing bool

	// duplicates are nodes whose ID was already taken, fixed after the walk.
	duplicates []*tree.Node

	// top are the nodes created directly under the walk's parent.
	top []*tree.Node
}

// loadChildren decodes the node elements under el, in order, as children of
// parent. Sequence numbers restart at 1 for every sibling list.
func (s *Storage) loadChildren(wc *walkContext, el *etree.Element, parent *tree.Node, depth int) error {
	var sequence int64
	for _, child := range el.SelectElements(tagNode) {
		sequence++
		n, duplicate, err := s.nodeFromXML(wc, child, sequence, parent)
		if err != nil {
			return err
		}
		if duplicate {
			wc.duplicates = append(wc.duplicates, n)
		}
		if depth == 0 {
			wc.top = append(wc.top, n)
		}
		if err := s.loadChildren(wc, child, n, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// WriteTree serializes store to w according to opts.
func (s *Storage) WriteTree(ctx context.Context, w io.Writer, store *tree.Store, opts SaveOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during save", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = errors.NewSaveFailed(err)
		}
	}()

	doc, err := s.BuildDocument(ctx, store, opts)
	if err != nil {
		return err
	}
	if _, err := doc.WriteTo(w); err != nil {
		return err
	}
	if opts.Exporting == ExportNone {
		store.Walk(func(n *tree.Node) bool {
			n.ClearPendingNew()
			return true
		})
	}
	return nil
}

// BuildDocument builds the markup document for store without writing it.
func (s *Storage) BuildDocument(ctx context.Context, store *tree.Store, opts SaveOptions) (*etree.Document, error) {
	var targets []*tree.Node
	if opts.Exporting.wholeTree() {
		targets = store.Roots()
	} else {
		if opts.Current == nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("export mode %s needs a current node", opts.Exporting))
		}
		targets = []*tree.Node{opts.Current}
	}

	cache, err := s.generateCache(ctx, targets, opts)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	root := doc.CreateElement(xmldoc.AppName)

	if opts.Exporting.wholeTree() {
		root.CreateElement(tagBookmarks).CreateAttr("list", xmldoc.JoinInts(store.Bookmarks()))
	}
	for _, n := range targets {
		if err := s.saveNode(ctx, n, root, cache, opts); err != nil {
			return nil, err
		}
	}

	settings := etree.NewIndentSettings()
	settings.Spaces = s.indent
	settings.PreserveLeafWhitespace = true
	doc.IndentWithSettings(settings)
	return doc, nil
}

// saveNode writes n and, unless the mode is single-node, its descendants.
func (s *Storage) saveNode(ctx context.Context, n *tree.Node, parent *etree.Element, cache *widget.EncodeCache, opts SaveOptions) error {
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("save")
	}
	el, err := nodeToXML(n, parent, true, cache, opts.StartOffset, opts.EndOffset, opts.CaseTransform)
	if err != nil {
		return err
	}
	if !opts.Exporting.recurses() {
		return nil
	}
	for _, child := range n.Children() {
		if err := s.saveNode(ctx, child, el, cache, opts); err != nil {
			return err
		}
	}
	return nil
}

// generateCache pre-encodes the binary payloads of every widget that the save
// will write.
func (s *Storage) generateCache(ctx context.Context, targets []*tree.Node, opts SaveOptions) (*widget.EncodeCache, error) {
	var widgets []widget.Widget
	var collect func(n *tree.Node) error
	collect = func(n *tree.Node) error {
		ws, err := n.AnchoredWidgets(opts.StartOffset, opts.EndOffset)
		if err != nil {
			return err
		}
		widgets = append(widgets, ws...)
		if !opts.Exporting.recurses() {
			return nil
		}
		for _, child := range n.Children() {
			if err := collect(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range targets {
		if err := collect(n); err != nil {
			return nil, err
		}
	}

	cache := widget.NewEncodeCache()
	if err := cache.Generate(ctx, widgets); err != nil {
		return nil, errors.NewCancelled("save")
	}
	return cache, nil
}
