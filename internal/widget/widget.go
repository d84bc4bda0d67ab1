// Package widget models the block objects anchored inside a node's rich-text
// buffer and their markup encoding.
package widget

import (
	"cmp"
	"encoding/base64"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/richtext"
)

// Kind identifies a widget variant.
type Kind string

const (
	KindImage        Kind = "image"
	KindAnchor       Kind = "anchor"
	KindEmbeddedFile Kind = "embedded_file"
	KindCodeBox      Kind = "codebox"
	KindTable        Kind = "table"
)

// Justification values; an absent attribute decodes to JustifyLeft.
const (
	JustifyLeft   = "left"
	JustifyRight  = "right"
	JustifyCenter = "center"
	JustifyFill   = "fill"
)

// Widget is an object anchored at a character offset of a node buffer.
type Widget interface {
	Kind() Kind
	Offset() int
	SetOffset(offset int)
	Justification() string

	// ToXML appends the widget's element to parent. bias is added to the
	// stored offset when writing char_offset.
	ToXML(parent *etree.Element, bias int, cache *EncodeCache) *etree.Element

	// InsertInto places the widget's anchor character into buf at its offset.
	InsertInto(buf *richtext.Buffer)
}

// anchored holds the offset and justification shared by every variant.
type anchored struct {
	offset        int
	justification string
}

func newAnchored(offset int, justification string) anchored {
	if justification == "" {
		justification = JustifyLeft
	}
	return anchored{offset: offset, justification: justification}
}

func (a *anchored) Offset() int           { return a.offset }
func (a *anchored) SetOffset(offset int)  { a.offset = offset }
func (a *anchored) Justification() string { return a.justification }

func (a *anchored) InsertInto(buf *richtext.Buffer) {
	a.offset = buf.InsertAnchor(a.offset)
}

// startElement creates tag under parent with the shared attributes.
func (a *anchored) startElement(parent *etree.Element, tag string, bias int) *etree.Element {
	el := parent.CreateElement(tag)
	el.CreateAttr("char_offset", strconv.Itoa(a.offset+bias))
	el.CreateAttr(richtext.PropJustification, a.justification)
	return el
}

// SortByOffset orders widgets by ascending offset, keeping the order of
// widgets that share one.
func SortByOffset(widgets []Widget) {
	slices.SortStableFunc(widgets, func(a, b Widget) int {
		return cmp.Compare(a.Offset(), b.Offset())
	})
}

// InRange returns the widgets whose offset lies in [start, end).
// end < 0 means no upper bound.
func InRange(widgets []Widget, start, end int) []Widget {
	var out []Widget
	for _, w := range widgets {
		off := w.Offset()
		if off < start {
			continue
		}
		if end >= 0 && off >= end {
			continue
		}
		out = append(out, w)
	}
	return out
}

// decodeBlob decodes base64 element text. Whitespace is ignored, empty text
// yields an empty blob and a corrupt tail is dropped.
func decodeBlob(text string) []byte {
	text = strings.Join(strings.Fields(text), "")
	if text == "" {
		return []byte{}
	}
	enc := base64.StdEncoding
	if !strings.HasSuffix(text, "=") && len(text)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	dst := make([]byte, enc.DecodedLen(len(text)))
	n, _ := enc.Decode(dst, []byte(text))
	return dst[:n]
}

func encodeBlob(blob []byte) string {
	return base64.StdEncoding.EncodeToString(blob)
}
