// Package xmldoc parses document markup with a recovery path for malformed
// or non-UTF-8 input.
//
// Parsing runs at most three attempts: the raw bytes as UTF-8, the bytes
// transcoded from their sniffed encoding, and finally the transcoded bytes
// with illegal characters sanitized. The first attempt that yields a document
// wins; a document whose root tag does not match the parser's identity string
// is rejected without further retries.
package xmldoc

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/errors"
)

// AppName is the root tag identifying a document file.
const AppName = "cherrytree"

// Parser parses documents and detached fragments.
type Parser struct {
	// RootTag is the required root element tag. Empty disables the check.
	RootTag string

	logger *slog.Logger
}

// NewParser creates a parser that requires rootTag at the document root.
func NewParser(rootTag string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{RootTag: rootTag, logger: logger}
}

// Parse parses a full document with the default identity string.
func Parse(data []byte) (*etree.Document, error) {
	return NewParser(AppName, nil).Parse(data)
}

// ParseFragment parses a detached fragment with the same recovery path
// but without checking the root tag.
func ParseFragment(data []byte) (*etree.Document, error) {
	return NewParser("", nil).Parse(data)
}

// ParseFile reads and parses the document at path.
func (p *Parser) ParseFile(path string) (*etree.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(fmt.Errorf("read %s: %w", path, err))
	}
	doc, err := p.Parse(data)
	if err != nil {
		p.logger.Error("document parse failed", "path", path, "error", err)
		return nil, err
	}
	return doc, nil
}

// Parse parses data, falling back to transcoding and sanitizing on failure.
func (p *Parser) Parse(data []byte) (*etree.Document, error) {
	doc, err := readDocument(data)
	if err != nil {
		p.logger.Error("xml parse failed", "error", err)

		transcoded, codeset := Transcode(data)
		if codeset != "" {
			p.logger.Info("xml transcoded", "from", codeset)
		}
		doc, err = p.SafeParse(transcoded)
		if err != nil {
			return nil, errors.NewParseFailed(err)
		}
	}
	return p.validate(doc)
}

// SafeParse parses content and, if that fails, parses it once more after
// Sanitize. Content is expected to already be UTF-8.
func (p *Parser) SafeParse(content []byte) (*etree.Document, error) {
	doc, err := readDocument(content)
	if err == nil {
		return doc, nil
	}
	p.logger.Error("xml parse failed", "error", err)

	doc, err = readDocument(Sanitize(content))
	if err != nil {
		p.logger.Error("xml parse failed after sanitize", "error", err)
		return nil, err
	}
	p.logger.Info("xml sanitised")
	return doc, nil
}

// validate checks that doc has a root element carrying the expected tag.
func (p *Parser) validate(doc *etree.Document) (*etree.Document, error) {
	root := doc.Root()
	if root == nil {
		return nil, errors.NewNoDocument()
	}
	if p.RootTag != "" && root.Tag != p.RootTag {
		return nil, errors.NewWrongRoot(p.RootTag, root.Tag)
	}
	return doc, nil
}

// readDocument parses data strictly as UTF-8. A declared non-UTF-8 encoding
// fails here so that Transcode gets a chance to convert it.
func readDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = utf8Only
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if err := checkSingleRoot(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkSingleRoot rejects a second top-level element or non-blank text
// outside the root element.
func checkSingleRoot(doc *etree.Document) error {
	var root *etree.Element
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			if root != nil {
				return fmt.Errorf("extra content after root element <%s>: <%s>", root.Tag, t.Tag)
			}
			root = t
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return fmt.Errorf("text outside the root element")
			}
		}
	}
	return nil
}

func utf8Only(label string, input io.Reader) (io.Reader, error) {
	if IsUTF8(label) {
		return input, nil
	}
	return nil, fmt.Errorf("declared encoding %q is not utf-8", label)
}
