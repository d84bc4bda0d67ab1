package xmlstore

import (
	"bytes"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/widget"
	"github.com/hpungsan/arbor/internal/xmldoc"
)

// parseSnippet parses a detached slot fragment with any root tag.
func (s *Storage) parseSnippet(content []byte) (*etree.Element, error) {
	doc, err := xmldoc.NewParser("", s.logger).Parse(content)
	if err != nil {
		return nil, err
	}
	return doc.Root(), nil
}

// BufferFromXML builds a new buffer from a fragment whose root holds content
// slots. Widgets keep their recorded char_offset.
func (s *Storage) BufferFromXML(content []byte, syntax string) (*richtext.Buffer, []widget.Widget, error) {
	root, err := s.parseSnippet(content)
	if err != nil {
		return nil, nil, err
	}
	buf, widgets, err := s.decodeSlots(root, -1)
	if err != nil {
		s.logger.Error("snippet decode failed", "syntax", syntax, "error", err)
		return nil, nil, err
	}
	return buf, widgets, nil
}

// InsertXML pastes the slots of a fragment into buf at offset. Text and
// widgets are placed one after another from offset on, ignoring recorded
// char_offset values. It returns the inserted widgets and the offset just
// past the pasted content.
func (s *Storage) InsertXML(buf *richtext.Buffer, content []byte, offset int) ([]widget.Widget, int, error) {
	root, err := s.parseSnippet(content)
	if err != nil {
		return nil, offset, err
	}
	if offset < 0 || offset > buf.CharCount() {
		offset = buf.CharCount()
	}
	d := &slotDecoder{tags: buf.Table(), buf: buf, cursor: offset}
	if err := d.decode(root); err != nil {
		return nil, offset, err
	}
	return d.widgets, d.cursor, nil
}

// TableMatrixFromXML reads the rows and column widths of a table fragment.
func (s *Storage) TableMatrixFromXML(content []byte) (widget.TableMatrix, error) {
	root, err := s.parseSnippet(content)
	if err != nil {
		return widget.TableMatrix{}, err
	}
	if root.Tag != widget.TagTable {
		return widget.TableMatrix{}, errors.NewWrongRoot(widget.TagTable, root.Tag)
	}
	return widget.PopulateTableMatrix(root), nil
}

// FragmentXML serializes the [start, end) range of buf and the widgets
// anchored there as a standalone fragment under a root element. Widget
// offsets are rebased to start.
func FragmentXML(buf *richtext.Buffer, widgets []widget.Widget, start, end int, transform CaseTransform) ([]byte, error) {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	root := doc.CreateElement(fragmentRoot)

	encodeRichText(root, buf, start, end, transform)
	bias := 0
	if start > 0 {
		bias = -start
	}
	for _, w := range widget.InRange(widgets, start, end) {
		w.ToXML(root, bias, nil)
	}

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
