package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/arbor/internal/catalog"
	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/ops"
	"github.com/hpungsan/arbor/internal/tree"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	nodes    *nodeRenderer
}

// HandleList handles GET /documents: indexed documents, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListDocuments(r.Context(), h.db, ops.ListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.renderer.page("Documents", "documents"),
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleSearch handles GET /search: full-text search over indexed nodes.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	data := SearchPageData{
		PageData: h.renderer.page("Search", "search"),
		Query:    query,
		DocID:    r.URL.Query().Get("doc"),
		HasQuery: query != "",
	}

	if query != "" {
		result, err := ops.Search(r.Context(), h.db, ops.SearchInput{
			Query:  query,
			DocID:  data.DocID,
			Limit:  parseIntParam(r, "limit", ops.DefaultSearchLimit),
			Offset: parseIntParam(r, "offset", 0),
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Items = result.Items
		data.Pagination = result.Pagination
	}

	// htmx live search swaps only the results list.
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}
	h.renderer.renderPage(w, r, "search", data)
}

// HandleDocument handles GET /documents/{id}: the node outline of a document.
func (h *Handlers) HandleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := catalog.GetDocument(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	outline, err := ops.Inspect(r.Context(), h.cfg, ops.InspectInput{Path: doc.Path})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "document", DocumentPageData{
		PageData: h.renderer.page(doc.Title, "documents"),
		Document: doc,
		Outline:  outline,
	})
}

// HandleNode handles GET /documents/{id}/nodes/{node}: one rendered node.
func (h *Handlers) HandleNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := strconv.ParseInt(r.PathValue("node"), 10, 64)
	if err != nil || nodeID < 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("node ID must be a non-negative integer"))
		return
	}

	entry, err := catalog.GetDocument(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	doc, err := ops.LoadDocument(r.Context(), h.cfg, entry.Path)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	n, err := doc.Node(nodeID)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	body, err := h.nodes.withNodeURL(func(id int64, anchor string) string {
		return nodeURL(entry.ID, id, anchor)
	}).Render(n)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	summary := ops.NodeSummary{
		ID:         n.ID,
		Name:       n.Name,
		Path:       ops.NodePath(n),
		Syntax:     n.Syntax,
		Tags:       n.Tags,
		Depth:      n.Depth(),
		Children:   len(n.Children()),
		ReadOnly:   n.ReadOnly,
		Bookmarked: doc.IsBookmarked(n.ID),
	}

	h.renderer.renderPage(w, r, "node", NodePageData{
		PageData: h.renderer.page(n.Name, "documents"),
		Document: entry,
		Node:     summary,
		Crumbs:   crumbs(n),
		Children: refs(n.Children()),
		Body:     body,
	})
}

// HandleReindex handles POST /documents/{id}/reindex.
func (h *Handlers) HandleReindex(w http.ResponseWriter, r *http.Request) {
	entry, err := catalog.GetDocument(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.Index(r.Context(), h.db, h.cfg, ops.IndexInput{Path: entry.Path})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := "/documents/" + url.PathEscape(result.DocID)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleUnindex handles DELETE /documents/{id}: drop it from the catalog.
func (h *Handlers) HandleUnindex(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Unindex(r.Context(), h.db, ops.UnindexInput{DocID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/documents")
		w.WriteHeader(http.StatusOK)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/documents", http.StatusSeeOther)
}

// HandleHighlightCSS serves the stylesheet for highlighted code.
func (h *Handlers) HandleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=3600")
	if err := h.nodes.writeCSS(w); err != nil {
		h.renderer.logger.Error("write highlight css", "error", err)
	}
}

// nodeURL is the page of one node, optionally scrolled to an anchor.
func nodeURL(docID string, nodeID int64, anchor string) string {
	u := fmt.Sprintf("/documents/%s/nodes/%d", url.PathEscape(docID), nodeID)
	if anchor != "" {
		u += "#" + anchorID(anchor)
	}
	return u
}

// crumbs lists the ancestors of n, root first.
func crumbs(n *tree.Node) []ops.NodeRef {
	var out []ops.NodeRef
	for p := n.Parent(); p != nil; p = p.Parent() {
		out = append([]ops.NodeRef{{ID: p.ID, Name: p.Name}}, out...)
	}
	return out
}

func refs(nodes []*tree.Node) []ops.NodeRef {
	out := make([]ops.NodeRef, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ops.NodeRef{ID: n.ID, Name: n.Name})
	}
	return out
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
