package tree

import (
	"slices"

	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/widget"
)

// BufferLoader materializes node content that was deferred at load time.
type BufferLoader interface {
	Materialize(id int64, syntax string) (*richtext.Buffer, []widget.Widget, error)
}

// Store is the document tree: top-level nodes, bookmarks and the identifier
// counter. It is not safe for concurrent mutation.
type Store struct {
	roots     []*Node
	bookmarks []int64
	maxID     int64
	loader    BufferLoader
}

// NewStore creates an empty tree.
func NewStore() *Store {
	return &Store{}
}

// SetLoader installs the loader used for deferred node content.
func (s *Store) SetLoader(loader BufferLoader) {
	s.loader = loader
}

// Reset drops every node and bookmark.
func (s *Store) Reset() {
	s.roots = nil
	s.bookmarks = nil
	s.maxID = 0
	s.loader = nil
}

// Roots returns the top-level nodes in order.
func (s *Store) Roots() []*Node { return s.roots }

// AppendNode adds a node built from data as the last child of parent, or as
// the last top-level node when parent is nil.
func (s *Store) AppendNode(data NodeData, parent *Node) *Node {
	n := &Node{NodeData: data, store: s, parent: parent}
	if parent == nil {
		s.roots = append(s.roots, n)
	} else {
		parent.children = append(parent.children, n)
	}
	s.observeID(data.ID)
	return n
}

func (s *Store) observeID(id int64) {
	if id > s.maxID {
		s.maxID = id
	}
}

// Remove detaches n and its subtree from the tree.
func (s *Store) Remove(n *Node) {
	drop := func(nodes []*Node) []*Node {
		return slices.DeleteFunc(nodes, func(c *Node) bool { return c == n })
	}
	if n.parent == nil {
		s.roots = drop(s.roots)
	} else {
		n.parent.children = drop(n.parent.children)
	}
	n.parent = nil
	n.store = nil
}

// NextID reserves and returns an identifier above every one in the tree.
func (s *Store) NextID() int64 {
	s.maxID++
	return s.maxID
}

// Bookmarks returns the bookmarked node IDs.
func (s *Store) Bookmarks() []int64 { return s.bookmarks }

// AddBookmark bookmarks id once.
func (s *Store) AddBookmark(id int64) {
	if !slices.Contains(s.bookmarks, id) {
		s.bookmarks = append(s.bookmarks, id)
	}
}

// RemoveBookmark drops id from the bookmarks.
func (s *Store) RemoveBookmark(id int64) {
	s.bookmarks = slices.DeleteFunc(s.bookmarks, func(b int64) bool { return b == id })
}

// Walk visits every node depth-first in document order. Returning false from
// fn skips the node's children.
func (s *Store) Walk(fn func(n *Node) bool) {
	var visit func(nodes []*Node)
	visit = func(nodes []*Node) {
		for _, n := range nodes {
			if fn(n) {
				visit(n.children)
			}
		}
	}
	visit(s.roots)
}

// Find returns the first node carrying id in document order.
func (s *Store) Find(id int64) *Node {
	var found *Node
	s.Walk(func(n *Node) bool {
		if found == nil && n.ID == id {
			found = n
		}
		return found == nil
	})
	return found
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	count := 0
	s.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}
