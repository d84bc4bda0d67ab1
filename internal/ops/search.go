package ops

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/catalog"
)

// Search limits
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	MaxQueryLength     = catalog.MaxSearchQueryChars
	MaxSnippetChars    = 300
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query  string `json:"query"`
	DocID  string `json:"doc_id,omitempty"`
	Limit  int    `json:"limit,omitempty"` // default: 20, max: 100
	Offset int    `json:"offset,omitempty"`
}

// Validate implements validation.Validatable.
func (in SearchInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Query,
			validation.Required,
			validation.By(func(any) error {
				if utf8.RuneCountInString(strings.TrimSpace(in.Query)) > MaxQueryLength {
					return fmt.Errorf("exceeds maximum length of %d characters", MaxQueryLength)
				}
				return nil
			}),
		),
		validation.Field(&in.Offset, validation.Min(0)),
	)
}

// SearchResultItem is one matching node.
type SearchResultItem struct {
	DocID   string `json:"doc_id"`
	DocPath string `json:"doc_path"`
	NodeID  int64  `json:"node_id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Syntax  string `json:"syntax"`
	// Snippet is HTML-safe: node content is escaped and only <b>...</b>
	// highlight tags are present.
	Snippet string `json:"snippet"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"` // "relevance"
}

// Search runs a full-text query over the catalog. Results are ranked by
// relevance with node name matches weighted highest.
func Search(ctx context.Context, database *sql.DB, input SearchInput) (*SearchOutput, error) {
	input.Query = strings.TrimSpace(input.Query)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var filters catalog.SearchFilters
	if docID := strings.TrimSpace(input.DocID); docID != "" {
		filters.DocID = &docID
	}
	limit := clampLimit(input.Limit, DefaultSearchLimit, MaxSearchLimit)
	offset := input.Offset

	results, total, err := catalog.SearchFullText(ctx, database, input.Query, filters, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]SearchResultItem, len(results))
	for i, r := range results {
		items[i] = SearchResultItem{
			DocID:   r.Document.ID,
			DocPath: r.Document.Path,
			NodeID:  r.Node.NodeID,
			Name:    r.Node.Name,
			Path:    r.Node.Path,
			Syntax:  r.Node.Syntax,
			Snippet: truncateSnippet(escapeSnippetHTML(r.Snippet), MaxSnippetChars),
		}
	}

	return &SearchOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "relevance",
	}, nil
}

// ListInput contains parameters for the ListDocuments operation.
type ListInput struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ListOutput contains one page of indexed documents.
type ListOutput struct {
	Items      []catalog.Document `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// ListDocuments returns the indexed documents, most recently indexed first.
func ListDocuments(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)
	offset := max(input.Offset, 0)

	docs, total, err := catalog.ListDocuments(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListOutput{
		Items: docs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(docs) < total,
			Total:   total,
		},
	}, nil
}

// truncateSnippet cuts s to about maxChars bytes without splitting a rune,
// a tag or an entity, prefers a word boundary and closes any open <b>.
func truncateSnippet(s string, maxChars int) string {
	if maxChars <= 0 {
		return "..."
	}
	if len(s) <= maxChars {
		return s
	}

	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return "..."
	}
	truncated := s[:cut]

	if lt := strings.LastIndex(truncated, "<"); lt != -1 && !strings.Contains(truncated[lt:], ">") {
		truncated = truncated[:lt]
	}
	if amp := strings.LastIndex(truncated, "&"); amp != -1 && !strings.Contains(truncated[amp:], ";") {
		truncated = truncated[:amp]
	}
	if space := strings.LastIndex(truncated, " "); space > cut/2 {
		truncated = truncated[:space]
	}

	for range strings.Count(truncated, "<b>") - strings.Count(truncated, "</b>") {
		truncated += "</b>"
	}
	return truncated + "..."
}

// escapeSnippetHTML escapes node content in a snippet and turns the catalog
// highlight markers into <b> tags.
func escapeSnippetHTML(s string) string {
	const (
		openPlaceholder  = "\x00ARBOR_B_OPEN\x00"
		closePlaceholder = "\x00ARBOR_B_CLOSE\x00"
	)
	s = strings.ReplaceAll(s, catalog.HighlightOpen, openPlaceholder)
	s = strings.ReplaceAll(s, catalog.HighlightClose, closePlaceholder)
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, openPlaceholder, "<b>")
	return strings.ReplaceAll(s, closePlaceholder, "</b>")
}
