package xmlstore

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/widget"
	"github.com/hpungsan/arbor/internal/xmldoc"
)

const (
	tagNode      = "node"
	tagBookmarks = "bookmarks"
)

// nodeDataFromXML reads the scalar attributes of a node element. Absent
// attributes decode to zero values.
func nodeDataFromXML(el *etree.Element, sequence int64) tree.NodeData {
	return tree.NodeData{
		ID:           xmldoc.Int64Attr(el, "unique_id"),
		Name:         xmldoc.Attr(el, "name"),
		Syntax:       xmldoc.Attr(el, "prog_lang"),
		Tags:         xmldoc.Attr(el, "tags"),
		ReadOnly:     xmldoc.BoolAttr(el, "readonly"),
		CustomIconID: uint32(xmldoc.Int64Attr(el, "custom_icon_id")),
		IsBold:       xmldoc.BoolAttr(el, "is_bold"),
		Foreground:   xmldoc.Attr(el, "foreground"),
		TSCreation:   xmldoc.Int64Attr(el, "ts_creation"),
		TSLastSave:   xmldoc.Int64Attr(el, "ts_lastsave"),
		Sequence:     sequence,
	}
}

// nodeFromXML decodes one node element and appends it to the tree under
// parent. It reports whether the element's ID was already taken by a node
// read earlier in the same load.
func (s *Storage) nodeFromXML(wc *walkContext, el *etree.Element, sequence int64, parent *tree.Node) (*tree.Node, bool, error) {
	data := nodeDataFromXML(el, sequence)

	if wc.importing {
		data.ID = wc.store.NextID()
		n := wc.store.AppendNode(data, parent)
		if err := s.decodeInto(n, el); err != nil {
			wc.store.Remove(n)
			return nil, false, err
		}
		n.MarkPendingNew()
		return n, false, nil
	}

	if s.delayed.Has(data.ID) {
		s.logger.Debug("node has duplicated id, will be fixed", "node_id", data.ID, "name", data.Name)
		n := wc.store.AppendNode(data, parent)
		if err := s.decodeInto(n, el); err != nil {
			return nil, false, err
		}
		return n, true, nil
	}

	s.delayed.Put(data.ID, el)
	return wc.store.AppendNode(data, parent), false, nil
}

// decodeInto eagerly decodes the content slots of el into n.
func (s *Storage) decodeInto(n *tree.Node, el *etree.Element) error {
	buf, widgets, err := s.decodeSlots(el, -1)
	if err != nil {
		return err
	}
	n.SetContent(buf, widgets)
	return nil
}

// decodeSlots builds a fresh buffer from the slot children of el.
func (s *Storage) decodeSlots(el *etree.Element, cursor int) (*richtext.Buffer, []widget.Widget, error) {
	d := &slotDecoder{
		tags:   s.tags,
		buf:    richtext.NewBuffer(s.tags),
		cursor: cursor,
	}
	if err := d.decode(el); err != nil {
		return nil, nil, err
	}
	d.buf.SetModified(false)
	return d.buf, d.widgets, nil
}

// nodeToXML appends the element for n to parent, including the text runs in
// [start, end) and, when withWidgets is set, the widgets anchored there.
// Widget offsets are rebased to start when start > 0.
func nodeToXML(n *tree.Node, parent *etree.Element, withWidgets bool, cache *widget.EncodeCache, start, end int, transform CaseTransform) (*etree.Element, error) {
	el := parent.CreateElement(tagNode)
	el.CreateAttr("name", n.Name)
	el.CreateAttr("unique_id", strconv.FormatInt(n.ID, 10))
	el.CreateAttr("prog_lang", n.Syntax)
	el.CreateAttr("tags", n.Tags)
	el.CreateAttr("readonly", xmldoc.FormatBool(n.ReadOnly))
	el.CreateAttr("custom_icon_id", strconv.FormatUint(uint64(n.CustomIconID), 10))
	el.CreateAttr("is_bold", xmldoc.FormatBool(n.IsBold))
	el.CreateAttr("foreground", n.Foreground)
	el.CreateAttr("ts_creation", strconv.FormatInt(n.TSCreation, 10))
	el.CreateAttr("ts_lastsave", strconv.FormatInt(n.TSLastSave, 10))

	buf, err := n.TextBuffer()
	if err != nil {
		return nil, err
	}
	encodeRichText(el, buf, start, end, transform)

	if withWidgets {
		widgets, err := n.AnchoredWidgets(start, end)
		if err != nil {
			return nil, err
		}
		bias := 0
		if start > 0 {
			bias = -start
		}
		for _, w := range widgets {
			w.ToXML(el, bias, cache)
		}
	}
	return el, nil
}
