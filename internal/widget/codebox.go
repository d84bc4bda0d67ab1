package widget

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/xmldoc"
)

// TagCodeBox is the element name of a code box.
const TagCodeBox = "codebox"

// CodeBox is a block of source text with its own highlighting mode and
// frame geometry.
type CodeBox struct {
	anchored
	Text              string
	Syntax            string
	FrameWidth        int
	FrameHeight       int
	WidthInPixels     bool
	HighlightBrackets bool
	ShowLineNumbers   bool
}

// NewCodeBox creates a code box with the given text and syntax.
func NewCodeBox(text, syntax string, frameWidth, frameHeight, offset int, justification string) *CodeBox {
	return &CodeBox{
		anchored:    newAnchored(offset, justification),
		Text:        text,
		Syntax:      syntax,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}
}

func (w *CodeBox) Kind() Kind { return KindCodeBox }

func (w *CodeBox) ToXML(parent *etree.Element, bias int, _ *EncodeCache) *etree.Element {
	el := w.startElement(parent, TagCodeBox, bias)
	el.CreateAttr("frame_width", strconv.Itoa(w.FrameWidth))
	el.CreateAttr("frame_height", strconv.Itoa(w.FrameHeight))
	el.CreateAttr("width_in_pixels", xmldoc.FormatBool(w.WidthInPixels))
	el.CreateAttr("syntax_highlighting", w.Syntax)
	el.CreateAttr("highlight_brackets", xmldoc.FormatBool(w.HighlightBrackets))
	el.CreateAttr("show_line_numbers", xmldoc.FormatBool(w.ShowLineNumbers))
	el.SetText(w.Text)
	return el
}

// DecodeCodeBox builds a code box from its element. Frame geometry must be
// present and integral.
func DecodeCodeBox(el *etree.Element, offset int, justification string) (Widget, error) {
	width, err := xmldoc.IntAttrStrict(el, "frame_width")
	if err != nil {
		return nil, err
	}
	height, err := xmldoc.IntAttrStrict(el, "frame_height")
	if err != nil {
		return nil, err
	}
	w := NewCodeBox(el.Text(), xmldoc.Attr(el, "syntax_highlighting"), width, height, offset, justification)
	w.WidthInPixels = xmldoc.BoolAttr(el, "width_in_pixels")
	w.HighlightBrackets = xmldoc.BoolAttr(el, "highlight_brackets")
	w.ShowLineNumbers = xmldoc.BoolAttr(el, "show_line_numbers")
	return w, nil
}
