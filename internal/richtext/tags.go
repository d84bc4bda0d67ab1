package richtext

import (
	"slices"
	"sync"
)

// Style properties recognised on rich_text elements.
const (
	PropWeight        = "weight"
	PropForeground    = "foreground"
	PropBackground    = "background"
	PropStyle         = "style"
	PropUnderline     = "underline"
	PropStrikethrough = "strikethrough"
	PropIndent        = "indent"
	PropScale         = "scale"
	PropJustification = "justification"
	PropLink          = "link"
	PropFamily        = "family"
)

// TagProperties is the style vocabulary in canonical output order.
var TagProperties = []string{
	PropWeight,
	PropForeground,
	PropBackground,
	PropStyle,
	PropUnderline,
	PropStrikethrough,
	PropIndent,
	PropScale,
	PropJustification,
	PropLink,
	PropFamily,
}

// IsTagProperty reports whether name belongs to the style vocabulary.
func IsTagProperty(name string) bool {
	return slices.Contains(TagProperties, name)
}

// propertyRank returns the position of property in TagProperties, or len(TagProperties).
func propertyRank(property string) int {
	if i := slices.Index(TagProperties, property); i >= 0 {
		return i
	}
	return len(TagProperties)
}

// Tag is a named style: one property set to one value.
type Tag struct {
	Name     string
	Property string
	Value    string
}

// TagName returns the registry name for a property/value pair.
func TagName(property, value string) string {
	return property + "_" + value
}

// TagTable is the style-tag registry shared by every buffer of a document session.
// Tags are append-only and interned by name, so pointer equality means style equality.
type TagTable struct {
	mu   sync.RWMutex
	tags map[string]*Tag
}

// NewTagTable creates an empty registry.
func NewTagTable() *TagTable {
	return &TagTable{tags: make(map[string]*Tag)}
}

// LookupOrCreate returns the tag for property=value, registering it on first use.
func (t *TagTable) LookupOrCreate(property, value string) *Tag {
	name := TagName(property, value)

	t.mu.RLock()
	tag, ok := t.tags[name]
	t.mu.RUnlock()
	if ok {
		return tag
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if tag, ok := t.tags[name]; ok {
		return tag
	}
	tag = &Tag{Name: name, Property: property, Value: value}
	t.tags[name] = tag
	return tag
}

// Lookup returns a registered tag by name.
func (t *TagTable) Lookup(name string) (*Tag, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tag, ok := t.tags[name]
	return tag, ok
}

// Len returns the number of registered tags.
func (t *TagTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tags)
}
