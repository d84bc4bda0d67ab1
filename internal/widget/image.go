package widget

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/xmldoc"
)

// TagImage is the element name shared by images, anchors and embedded files.
const TagImage = "encoded_png"

// ImagePng is a raster image with an optional hyperlink.
type ImagePng struct {
	anchored
	Blob []byte
	Link string
}

// NewImagePng creates an image widget.
func NewImagePng(blob []byte, link string, offset int, justification string) *ImagePng {
	return &ImagePng{anchored: newAnchored(offset, justification), Blob: blob, Link: link}
}

func (w *ImagePng) Kind() Kind      { return KindImage }
func (w *ImagePng) RawBlob() []byte { return w.Blob }

func (w *ImagePng) ToXML(parent *etree.Element, bias int, cache *EncodeCache) *etree.Element {
	el := w.startElement(parent, TagImage, bias)
	el.CreateAttr("link", w.Link)
	el.SetText(cache.Encoded(w))
	return el
}

// Anchor is a named jump target inside a buffer.
type Anchor struct {
	anchored
	Name string
}

// NewAnchor creates an anchor marker.
func NewAnchor(name string, offset int, justification string) *Anchor {
	return &Anchor{anchored: newAnchored(offset, justification), Name: name}
}

func (w *Anchor) Kind() Kind { return KindAnchor }

func (w *Anchor) ToXML(parent *etree.Element, bias int, _ *EncodeCache) *etree.Element {
	el := w.startElement(parent, TagImage, bias)
	el.CreateAttr("anchor", w.Name)
	return el
}

// EmbeddedFile is an arbitrary file stored inline with its name and
// modification time.
type EmbeddedFile struct {
	anchored
	FileName string
	Blob     []byte
	Time     float64
}

// NewEmbeddedFile creates an embedded file widget.
func NewEmbeddedFile(fileName string, blob []byte, modTime float64, offset int, justification string) *EmbeddedFile {
	return &EmbeddedFile{
		anchored: newAnchored(offset, justification),
		FileName: fileName,
		Blob:     blob,
		Time:     modTime,
	}
}

func (w *EmbeddedFile) Kind() Kind      { return KindEmbeddedFile }
func (w *EmbeddedFile) RawBlob() []byte { return w.Blob }

func (w *EmbeddedFile) ToXML(parent *etree.Element, bias int, cache *EncodeCache) *etree.Element {
	el := w.startElement(parent, TagImage, bias)
	el.CreateAttr("filename", w.FileName)
	el.CreateAttr("time", strconv.FormatFloat(w.Time, 'f', 6, 64))
	el.SetText(cache.Encoded(w))
	return el
}

// DecodeImage builds the widget stored in an encoded_png element. A
// non-empty anchor attribute wins, then a filename makes an embedded file,
// otherwise the element is a plain image.
func DecodeImage(el *etree.Element, offset int, justification string) (Widget, error) {
	if name := xmldoc.Attr(el, "anchor"); name != "" {
		return NewAnchor(name, offset, justification), nil
	}

	blob := decodeBlob(el.Text())
	if fileName := xmldoc.Attr(el, "filename"); fileName != "" {
		raw := strings.TrimSpace(xmldoc.Attr(el, "time"))
		if raw == "" {
			raw = "0"
		}
		modTime, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.NewMalformedNumeric(el.Tag, "time", raw)
		}
		return NewEmbeddedFile(fileName, blob, modTime, offset, justification), nil
	}
	return NewImagePng(blob, xmldoc.Attr(el, "link"), offset, justification), nil
}
