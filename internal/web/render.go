package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/arbor/internal/catalog"
	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "documents", "search"
}

// ListPageData is the template data for the document list page.
type ListPageData struct {
	PageData
	Items      []catalog.Document
	Pagination ops.Pagination
}

// DocumentPageData is the template data for a document outline.
type DocumentPageData struct {
	PageData
	Document *catalog.Document
	Outline  *ops.InspectOutput
}

// NodePageData is the template data for a rendered node.
type NodePageData struct {
	PageData
	Document *catalog.Document
	Node     ops.NodeSummary
	Crumbs   []ops.NodeRef
	Children []ops.NodeRef
	Body     template.HTML
}

// SearchPageData is the template data for the search page.
type SearchPageData struct {
	PageData
	Query      string
	DocID      string
	Items      []ops.SearchResultItem
	Pagination ops.Pagination
	HasQuery   bool
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	funcMap := template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"indent":      func(depth int) int { return depth * 18 },
		"formatTime":  formatTime,
		"formatChars": formatChars,
		"safeHTML":    func(s string) template.HTML { return template.HTML(s) },
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"list":     "list.html",
		"document": "document.html",
		"node":     "node.html",
		"search":   "search.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// page builds the common page fields.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given status.
// htmx requests get only the "content" block.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders one named block from a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("template not found", "page", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution failed", "page", page, "block", block, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var aErr *errors.ArborError
	if !stderrors.As(err, &aErr) {
		aErr = errors.NewInternal(err)
	}

	status := aErr.Status
	message := aErr.Message
	if aErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		message = "an internal error occurred"
	}
	// Statuses outside the HTTP range (499) are reported as client errors.
	if status < 400 || status > 599 || status == 499 {
		status = http.StatusBadRequest
	}

	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(aErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// formatChars formats an integer with comma thousands separators.
func formatChars(n int) string {
	if n < 0 {
		return "-" + formatChars(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
