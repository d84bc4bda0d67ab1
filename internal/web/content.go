package web

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/widget"
)

// highlightStyle is the chroma style served as /static/chroma.css.
const highlightStyle = "github"

// markdownSyntaxes are node syntaxes rendered through goldmark instead of
// the highlighter.
var markdownSyntaxes = map[string]bool{"markdown": true, "md": true}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{3,12}$`)

// nodeRenderer turns a node's content into HTML. nodeURL builds the link for
// "node N" hyperlinks.
type nodeRenderer struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
	nodeURL   func(id int64, anchor string) string
}

func newNodeRenderer() *nodeRenderer {
	return &nodeRenderer{
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4)),
		style:     styles.Get(highlightStyle),
	}
}

// withNodeURL returns a copy of r that resolves node links with nodeURL.
func (r *nodeRenderer) withNodeURL(nodeURL func(id int64, anchor string) string) *nodeRenderer {
	c := *r
	c.nodeURL = nodeURL
	return &c
}

// writeCSS writes the stylesheet for highlighted code.
func (r *nodeRenderer) writeCSS(w io.Writer) error {
	return r.formatter.WriteCSS(w, r.style)
}

// Render returns the node body. Rich-text nodes become styled spans with
// widgets at their anchors; code nodes are highlighted; markdown nodes go
// through goldmark.
func (r *nodeRenderer) Render(n *tree.Node) (template.HTML, error) {
	buf, err := n.TextBuffer()
	if err != nil {
		return "", err
	}
	if !n.IsRichText() {
		text := buf.Text(0, -1)
		if markdownSyntaxes[n.Syntax] {
			return renderMarkdown(text), nil
		}
		if n.Syntax == tree.SyntaxPlainText {
			return template.HTML(`<pre class="plain">` + template.HTMLEscapeString(text) + `</pre>`), nil
		}
		return r.highlight(text, n.Syntax), nil
	}

	widgets, err := n.AnchoredWidgets(0, -1)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString(`<div class="rich">`)
	pos := 0
	for _, w := range widgets {
		r.writeRuns(&out, buf.Runs(pos, w.Offset()))
		out.WriteString(string(r.widgetHTML(w)))
		pos = w.Offset() + 1
	}
	r.writeRuns(&out, buf.Runs(pos, -1))
	out.WriteString(`</div>`)
	return template.HTML(out.String()), nil
}

func (r *nodeRenderer) writeRuns(out *strings.Builder, runs []richtext.Run) {
	for _, run := range runs {
		r.writeRun(out, run)
	}
}

// writeRun emits one run. Unstyled runs are written as bare text.
func (r *nodeRenderer) writeRun(out *strings.Builder, run richtext.Run) {
	text := template.HTMLEscapeString(run.Text)
	attrs := run.Attributes()
	if len(attrs) == 0 {
		out.WriteString(text)
		return
	}

	var classes, css []string
	href := ""
	for _, a := range attrs {
		switch a.Property {
		case richtext.PropWeight:
			if a.Value == "heavy" {
				classes = append(classes, "b")
			}
		case richtext.PropStyle:
			if a.Value == "italic" {
				classes = append(classes, "i")
			}
		case richtext.PropUnderline:
			classes = append(classes, "u")
		case richtext.PropStrikethrough:
			if a.Value == "true" {
				classes = append(classes, "s")
			}
		case richtext.PropFamily:
			if a.Value == "monospace" {
				classes = append(classes, "mono")
			}
		case richtext.PropScale:
			classes = append(classes, "scale-"+classToken(a.Value))
		case richtext.PropJustification:
			classes = append(classes, "j-"+classToken(a.Value))
		case richtext.PropIndent:
			if level, err := strconv.Atoi(a.Value); err == nil && level > 0 {
				css = append(css, fmt.Sprintf("margin-left:%dem", min(level, 20)*2))
			}
		case richtext.PropForeground:
			if colorPattern.MatchString(a.Value) {
				css = append(css, "color:"+a.Value)
			}
		case richtext.PropBackground:
			if colorPattern.MatchString(a.Value) {
				css = append(css, "background-color:"+a.Value)
			}
		case richtext.PropLink:
			href = r.linkTarget(a.Value)
		}
	}

	tag := "span"
	if href != "" {
		tag = "a"
	}
	out.WriteString("<" + tag)
	if href != "" {
		fmt.Fprintf(out, ` href="%s"`, template.HTMLEscapeString(href))
		if !strings.HasPrefix(href, "/") {
			out.WriteString(` rel="noopener noreferrer"`)
		}
	}
	if len(classes) > 0 {
		fmt.Fprintf(out, ` class="%s"`, strings.Join(classes, " "))
	}
	if len(css) > 0 {
		fmt.Fprintf(out, ` style="%s"`, template.HTMLEscapeString(strings.Join(css, ";")))
	}
	out.WriteString(">" + text + "</" + tag + ">")
}

// linkTarget maps a link attribute ("webs URL", "node ID [ANCHOR]") to an
// href. File and folder links and unsafe schemes map to "".
func (r *nodeRenderer) linkTarget(value string) string {
	kind, rest, _ := strings.Cut(value, " ")
	switch kind {
	case "webs":
		u, err := url.Parse(rest)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return ""
		}
		return u.String()
	case "node":
		idText, anchor, _ := strings.Cut(rest, " ")
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil || r.nodeURL == nil {
			return ""
		}
		return r.nodeURL(id, anchor)
	}
	return ""
}

// widgetHTML renders one anchored widget.
func (r *nodeRenderer) widgetHTML(w widget.Widget) template.HTML {
	just := classToken(w.Justification())
	switch v := w.(type) {
	case *widget.CodeBox:
		return template.HTML(`<div class="codebox j-` + just + `">` + string(r.highlight(v.Text, v.Syntax)) + `</div>`)
	case *widget.Table:
		return tableHTML(v)
	case *widget.ImagePng:
		img := fmt.Sprintf(`<img class="j-%s" alt="" src="data:image/png;base64,%s">`, just, base64.StdEncoding.EncodeToString(v.Blob))
		if href := r.linkTarget(v.Link); href != "" {
			img = fmt.Sprintf(`<a href="%s">%s</a>`, template.HTMLEscapeString(href), img)
		}
		return template.HTML(img)
	case *widget.Anchor:
		return template.HTML(fmt.Sprintf(`<a class="anchor" id="%s" title="%s">&#9875;</a>`,
			template.HTMLEscapeString(anchorID(v.Name)), template.HTMLEscapeString(v.Name)))
	case *widget.EmbeddedFile:
		return template.HTML(fmt.Sprintf(`<span class="file">%s <small>(%s bytes)</small></span>`,
			template.HTMLEscapeString(v.FileName), formatChars(len(v.Blob))))
	}
	return ""
}

// highlight renders code with chroma, falling back to escaped text.
func (r *nodeRenderer) highlight(text, syntax string) template.HTML {
	escaped := template.HTML(`<pre class="plain">` + template.HTMLEscapeString(text) + `</pre>`)
	lexer := lexers.Get(syntax)
	if lexer == nil {
		return escaped
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, text)
	if err != nil {
		return escaped
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, it); err != nil {
		return escaped
	}
	return template.HTML(buf.String())
}

// tableHTML renders a table with its first row as the header.
func tableHTML(t *widget.Table) template.HTML {
	var out strings.Builder
	out.WriteString(`<table class="grid j-` + classToken(t.Justification()) + `">`)
	for i, row := range t.Rows {
		cell := "td"
		if i == 0 {
			cell = "th"
			out.WriteString("<thead>")
		}
		out.WriteString("<tr>")
		for _, c := range row {
			out.WriteString("<" + cell + ">" + template.HTMLEscapeString(c) + "</" + cell + ">")
		}
		out.WriteString("</tr>")
		if i == 0 {
			out.WriteString("</thead><tbody>")
		}
	}
	if len(t.Rows) > 0 {
		out.WriteString("</tbody>")
	}
	out.WriteString("</table>")
	return template.HTML(out.String())
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the source is dropped by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// classToken keeps letters, digits and dashes so attribute values are safe
// inside a class name.
func classToken(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "none"
	}
	return sb.String()
}

// anchorID is the element id used for an anchor widget.
func anchorID(name string) string {
	return "anchor-" + url.PathEscape(name)
}
