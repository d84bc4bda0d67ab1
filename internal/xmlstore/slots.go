package xmlstore

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/widget"
	"github.com/hpungsan/arbor/internal/xmldoc"
)

const tagRichText = "rich_text"

// slotKind is the closed set of content slot elements.
type slotKind int

const (
	slotUnknown slotKind = iota
	slotRichText
	slotImage
	slotTable
	slotCodeBox
)

func slotKindOf(tag string) slotKind {
	switch tag {
	case tagRichText:
		return slotRichText
	case widget.TagImage:
		return slotImage
	case widget.TagTable:
		return slotTable
	case widget.TagCodeBox:
		return slotCodeBox
	}
	return slotUnknown
}

// CaseTransform is applied to text runs on encode.
type CaseTransform byte

const (
	CaseNone   CaseTransform = 'n'
	CaseLower  CaseTransform = 'l'
	CaseUpper  CaseTransform = 'u'
	CaseToggle CaseTransform = 't'
)

var caseTransformNames = map[string]CaseTransform{
	"":       CaseNone,
	"none":   CaseNone,
	"lower":  CaseLower,
	"upper":  CaseUpper,
	"toggle": CaseToggle,
}

// ParseCaseTransform maps none, lower, upper or toggle to a CaseTransform.
// The empty string is none.
func ParseCaseTransform(name string) (CaseTransform, error) {
	if c, ok := caseTransformNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c, nil
	}
	return CaseNone, errors.NewInvalidRequest(fmt.Sprintf("unknown case transform %q", name))
}

// Apply returns text converted by the transform.
func (c CaseTransform) Apply(text string) string {
	switch c {
	case CaseLower:
		return cases.Lower(language.Und).String(text)
	case CaseUpper:
		return cases.Upper(language.Und).String(text)
	case CaseToggle:
		return swapCase(text)
	}
	return text
}

func swapCase(text string) string {
	upper := cases.Upper(language.Und)
	lower := cases.Lower(language.Und)
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLower(r):
			sb.WriteString(upper.String(string(r)))
		case unicode.IsUpper(r):
			sb.WriteString(lower.String(string(r)))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// slotDecoder rebuilds buffer content from slot elements.
type slotDecoder struct {
	tags *richtext.TagTable
	buf  *richtext.Buffer

	// cursor is the insertion point for pasted content. When negative, text
	// is appended and widgets use their recorded char_offset.
	cursor int

	widgets []widget.Widget
}

// decode processes every child element of parent in order. Unknown slot
// tags are skipped.
func (d *slotDecoder) decode(parent *etree.Element) error {
	for _, el := range parent.ChildElements() {
		kind := slotKindOf(el.Tag)
		switch kind {
		case slotUnknown:
			continue
		case slotRichText:
			d.decodeRichText(el)
		default:
			if err := d.decodeWidget(kind, el); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *slotDecoder) decodeRichText(el *etree.Element) {
	text := el.Text()
	if text == "" {
		return
	}
	var tags []*richtext.Tag
	for _, attr := range el.Attr {
		if richtext.IsTagProperty(attr.Key) {
			tags = append(tags, d.tags.LookupOrCreate(attr.Key, attr.Value))
		}
	}
	if d.cursor < 0 {
		d.buf.Append(text, tags...)
		return
	}
	d.cursor = d.buf.Insert(d.cursor, text, tags...)
}

func (d *slotDecoder) decodeWidget(kind slotKind, el *etree.Element) error {
	offset := d.cursor
	if offset < 0 {
		var err error
		if offset, err = xmldoc.IntAttrStrict(el, "char_offset"); err != nil {
			return err
		}
	}
	justification := xmldoc.Attr(el, richtext.PropJustification)
	if justification == "" {
		justification = widget.JustifyLeft
	}

	var (
		w   widget.Widget
		err error
	)
	switch kind {
	case slotImage:
		w, err = widget.DecodeImage(el, offset, justification)
	case slotTable:
		w, err = widget.DecodeTable(el, offset, justification)
	case slotCodeBox:
		w, err = widget.DecodeCodeBox(el, offset, justification)
	}
	if err != nil {
		return err
	}

	w.InsertInto(d.buf)
	if d.cursor >= 0 {
		d.cursor = w.Offset() + 1
	}
	d.widgets = append(d.widgets, w)
	return nil
}

// encodeRichText appends one rich_text element per same-style run of buf in
// [start, end).
func encodeRichText(parent *etree.Element, buf *richtext.Buffer, start, end int, transform CaseTransform) {
	for _, run := range buf.Runs(start, end) {
		el := parent.CreateElement(tagRichText)
		for _, attr := range run.Attributes() {
			el.CreateAttr(attr.Property, attr.Value)
		}
		el.SetText(transform.Apply(run.Text))
	}
}
