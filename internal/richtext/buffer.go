package richtext

import (
	"slices"
	"strings"
)

// AnchorChar occupies one character position for every anchored widget.
// A literal U+FFFC inserted as text is ordinary text; only InsertAnchor
// creates anchor positions.
const AnchorChar = '\uFFFC'

// tagSet is a sorted, interned set of tags shared by the runes it styles.
type tagSet []*Tag

func newTagSet(tags []*Tag) tagSet {
	if len(tags) == 0 {
		return nil
	}
	set := make(tagSet, 0, len(tags))
	for _, tag := range tags {
		if tag != nil && !slices.Contains(set, tag) {
			set = append(set, tag)
		}
	}
	slices.SortFunc(set, func(a, b *Tag) int {
		if r := propertyRank(a.Property) - propertyRank(b.Property); r != 0 {
			return r
		}
		return strings.Compare(a.Name, b.Name)
	})
	return set
}

func (s tagSet) equal(o tagSet) bool {
	return slices.Equal(s, o)
}

// Buffer is a mutable run of characters where each character carries a tag set.
// Anchored widgets are represented by AnchorChar at their offset, flagged in
// anchors.
type Buffer struct {
	table    *TagTable
	runes    []rune
	styles   []tagSet
	anchors  []bool
	modified bool
}

// NewBuffer creates an empty buffer whose tags come from table.
func NewBuffer(table *TagTable) *Buffer {
	if table == nil {
		table = NewTagTable()
	}
	return &Buffer{table: table}
}

// Table returns the buffer's tag registry.
func (b *Buffer) Table() *TagTable {
	return b.table
}

// CharCount returns the number of characters, anchors included.
func (b *Buffer) CharCount() int {
	return len(b.runes)
}

// Modified reports whether the buffer changed since the last SetModified(false).
func (b *Buffer) Modified() bool {
	return b.modified
}

// SetModified sets the modified flag.
func (b *Buffer) SetModified(modified bool) {
	b.modified = modified
}

// clamp limits offset to [0, CharCount]; a negative offset means the end.
func (b *Buffer) clamp(offset int) int {
	if offset < 0 || offset > len(b.runes) {
		return len(b.runes)
	}
	return offset
}

// Insert inserts text styled with tags at offset and returns the offset just past it.
func (b *Buffer) Insert(offset int, text string, tags ...*Tag) int {
	offset = b.clamp(offset)
	if text == "" {
		return offset
	}
	rs := []rune(text)
	set := newTagSet(tags)
	styles := make([]tagSet, len(rs))
	for i := range styles {
		styles[i] = set
	}
	b.runes = slices.Insert(b.runes, offset, rs...)
	b.styles = slices.Insert(b.styles, offset, styles...)
	b.anchors = slices.Insert(b.anchors, offset, make([]bool, len(rs))...)
	b.modified = true
	return offset + len(rs)
}

// Append inserts text styled with tags at the end of the buffer.
func (b *Buffer) Append(text string, tags ...*Tag) {
	b.Insert(-1, text, tags...)
}

// InsertAnchor inserts an anchor character at offset and returns the offset used.
func (b *Buffer) InsertAnchor(offset int) int {
	offset = b.clamp(offset)
	b.runes = slices.Insert(b.runes, offset, AnchorChar)
	b.styles = slices.Insert(b.styles, offset, tagSet(nil))
	b.anchors = slices.Insert(b.anchors, offset, true)
	b.modified = true
	return offset
}

// bounds normalises a [start, end) range; end < 0 means the end of the buffer.
func (b *Buffer) bounds(start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end < 0 || end > len(b.runes) {
		end = len(b.runes)
	}
	if start > end {
		start = end
	}
	return start, end
}

// Text returns the characters in [start, end) without anchors.
func (b *Buffer) Text(start, end int) string {
	start, end = b.bounds(start, end)
	var sb strings.Builder
	for i := start; i < end; i++ {
		if !b.anchors[i] {
			sb.WriteRune(b.runes[i])
		}
	}
	return sb.String()
}

// Slice returns the characters in [start, end) including anchor characters.
func (b *Buffer) Slice(start, end int) string {
	start, end = b.bounds(start, end)
	return string(b.runes[start:end])
}

// TagsAt returns the tags applied at offset.
func (b *Buffer) TagsAt(offset int) []*Tag {
	if offset < 0 || offset >= len(b.runes) {
		return nil
	}
	return slices.Clone(b.styles[offset])
}

// IsAnchor reports whether offset holds an anchor.
func (b *Buffer) IsAnchor(offset int) bool {
	return offset >= 0 && offset < len(b.anchors) && b.anchors[offset]
}

// AnchorOffsets returns the offsets of every anchor in ascending order.
func (b *Buffer) AnchorOffsets() []int {
	var offsets []int
	for i, anchor := range b.anchors {
		if anchor {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// Attribute is one property=value pair of a run.
type Attribute struct {
	Property string
	Value    string
}

// Run is a maximal stretch of identically styled text.
type Run struct {
	Start int
	End   int
	Text  string
	Tags  []*Tag
}

// Attributes returns the run's style attributes in TagProperties order.
// Empty values are dropped.
func (r Run) Attributes() []Attribute {
	attrs := make([]Attribute, 0, len(r.Tags))
	for _, tag := range r.Tags {
		if tag.Value == "" {
			continue
		}
		attrs = append(attrs, Attribute{Property: tag.Property, Value: tag.Value})
	}
	return attrs
}

// Runs splits [start, end) into maximal same-style runs. Anchors are
// skipped: they neither appear in run text nor split two runs of equal style.
func (b *Buffer) Runs(start, end int) []Run {
	start, end = b.bounds(start, end)

	var runs []Run
	var sb strings.Builder
	var cur *Run
	flush := func() {
		if cur != nil {
			cur.Text = sb.String()
			runs = append(runs, *cur)
			cur = nil
			sb.Reset()
		}
	}

	for i := start; i < end; i++ {
		if b.anchors[i] {
			continue
		}
		set := b.styles[i]
		if cur != nil && !tagSet(cur.Tags).equal(set) {
			flush()
		}
		if cur == nil {
			cur = &Run{Start: i, Tags: set}
		}
		sb.WriteRune(b.runes[i])
		cur.End = i + 1
	}
	flush()
	return runs
}
