package xmlstore

import (
	"github.com/beevik/etree"
)

// fragmentRoot is the root tag of a detached node fragment.
const fragmentRoot = "root"

// DelayedCache maps node IDs to the undecoded content of nodes read during
// one load. Each entry is handed out at most once.
type DelayedCache struct {
	fragments map[int64]*etree.Document
}

// NewDelayedCache creates an empty cache.
func NewDelayedCache() *DelayedCache {
	return &DelayedCache{fragments: make(map[int64]*etree.Document)}
}

// Has reports whether id has a pending fragment.
func (c *DelayedCache) Has(id int64) bool {
	_, ok := c.fragments[id]
	return ok
}

// Put stores a standalone copy of the content slots of nodeEl under id.
// Nested node elements are not copied.
func (c *DelayedCache) Put(id int64, nodeEl *etree.Element) {
	doc := etree.NewDocument()
	root := doc.CreateElement(fragmentRoot)
	for _, child := range nodeEl.ChildElements() {
		if child.Tag == tagNode {
			continue
		}
		root.AddChild(child.Copy())
	}
	c.fragments[id] = doc
}

// Take removes and returns the fragment for id.
func (c *DelayedCache) Take(id int64) (*etree.Document, bool) {
	doc, ok := c.fragments[id]
	if ok {
		delete(c.fragments, id)
	}
	return doc, ok
}

// Len returns the number of pending fragments.
func (c *DelayedCache) Len() int {
	return len(c.fragments)
}
