// Package tree holds the in-memory document: an ordered forest of nodes, each
// owning a rich-text buffer and its anchored widgets.
package tree

import (
	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/widget"
)

// Syntax sentinels for NodeData.Syntax. Any other value names a source
// language and makes the node a plain code node.
const (
	SyntaxRichText  = "custom-colors"
	SyntaxPlainText = "plain-text"
)

// NodeData holds the scalar attributes of a node.
type NodeData struct {
	ID           int64
	Name         string
	Syntax       string
	Tags         string
	ReadOnly     bool
	CustomIconID uint32
	IsBold       bool
	Foreground   string
	TSCreation   int64
	TSLastSave   int64

	// Sequence is the 1-based position among siblings.
	Sequence int64
}

// IsRichText reports whether the node holds styled text rather than code.
func (d NodeData) IsRichText() bool {
	return d.Syntax == "" || d.Syntax == SyntaxRichText
}

// Node is one element of the tree.
type Node struct {
	NodeData

	store    *Store
	parent   *Node
	children []*Node

	buffer     *richtext.Buffer
	widgets    []widget.Widget
	loadErr    error
	pendingNew bool
}

// Parent returns the parent node, or nil for a top-level node.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes in order.
func (n *Node) Children() []*Node { return n.children }

// Depth returns 0 for top-level nodes.
func (n *Node) Depth() int {
	depth := 0
	for p := n.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// Path returns the names from the top-level ancestor down to n.
func (n *Node) Path() []string {
	var path []string
	for p := n; p != nil; p = p.parent {
		path = append([]string{p.Name}, path...)
	}
	return path
}

// SetID changes the node's identifier.
func (n *Node) SetID(id int64) {
	n.ID = id
	if n.store != nil {
		n.store.observeID(id)
	}
}

// PendingNew reports whether the node was added after the document was loaded
// and has not been written yet.
func (n *Node) PendingNew() bool { return n.pendingNew }

// MarkPendingNew flags the node as awaiting its first write.
func (n *Node) MarkPendingNew() { n.pendingNew = true }

// ClearPendingNew clears the pending flag after a write.
func (n *Node) ClearPendingNew() { n.pendingNew = false }

// Loaded reports whether the node's buffer has been materialized.
func (n *Node) Loaded() bool { return n.buffer != nil }

// SetContent installs the node's buffer and widgets.
func (n *Node) SetContent(buf *richtext.Buffer, widgets []widget.Widget) {
	n.buffer = buf
	n.widgets = widgets
	widget.SortByOffset(n.widgets)
}

// TextBuffer returns the node's buffer, materializing it through the store's
// loader on first access. A failed load is remembered and returned on every
// later call. A node with neither content nor a loader gets an empty buffer.
func (n *Node) TextBuffer() (*richtext.Buffer, error) {
	if n.buffer != nil {
		return n.buffer, nil
	}
	if n.loadErr != nil {
		return nil, n.loadErr
	}
	if n.store != nil && n.store.loader != nil {
		buf, widgets, err := n.store.loader.Materialize(n.ID, n.Syntax)
		if err != nil {
			n.loadErr = err
			return nil, err
		}
		n.SetContent(buf, widgets)
		return n.buffer, nil
	}
	n.buffer = richtext.NewBuffer(nil)
	return n.buffer, nil
}

// AnchoredWidgets returns the node's widgets with offsets in [start, end) in
// ascending offset order. end < 0 means no upper bound. The buffer is
// materialized first if needed.
func (n *Node) AnchoredWidgets(start, end int) ([]widget.Widget, error) {
	if _, err := n.TextBuffer(); err != nil {
		return nil, err
	}
	return widget.InRange(n.widgets, start, end), nil
}

// AddWidget anchors w into the node's buffer. Widgets at or after its
// offset move one character right.
func (n *Node) AddWidget(w widget.Widget) error {
	buf, err := n.TextBuffer()
	if err != nil {
		return err
	}
	w.InsertInto(buf)
	for _, other := range n.widgets {
		if other.Offset() >= w.Offset() {
			other.SetOffset(other.Offset() + 1)
		}
	}
	n.widgets = append(n.widgets, w)
	widget.SortByOffset(n.widgets)
	return nil
}
