package catalog

import (
	"context"
	"crypto/rand"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/arbor/internal/errors"
)

// MaxSearchQueryChars bounds the length of a full-text query.
const MaxSearchQueryChars = 500

// Highlight markers written by snippet(). Callers escape the snippet and then
// turn these into markup.
const (
	HighlightOpen  = "[[[B]]]"
	HighlightClose = "[[[/B]]]"
)

// Document is one indexed document.
type Document struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	NodeCount int    `json:"node_count"`
	Bookmarks string `json:"bookmarks,omitempty"`
	IndexedAt int64  `json:"indexed_at"`
}

// NodeRecord is the indexed form of one node.
type NodeRecord struct {
	NodeID     int64  `json:"node_id"`
	ParentID   int64  `json:"parent_id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Syntax     string `json:"syntax"`
	Tags       string `json:"tags,omitempty"`
	Body       string `json:"-"`
	Chars      int    `json:"chars"`
	Widgets    int    `json:"widgets"`
	TSLastSave int64  `json:"ts_lastsave"`
}

// SearchFilters narrows a full-text search.
type SearchFilters struct {
	DocID *string
}

// SearchResult is one matching node.
type SearchResult struct {
	Document Document
	Node     NodeRecord
	Snippet  string
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// NewID returns a fresh document ID.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ReplaceDocument stores doc and its nodes, replacing whatever was indexed
// for the same path. A document already indexed keeps its ID; doc.ID and
// doc.IndexedAt are filled in.
func ReplaceDocument(ctx context.Context, db *sql.DB, doc *Document, nodes []NodeRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE path = ?`, doc.Path).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		doc.ID = NewID()
	case err != nil:
		return errors.NewInternal(err)
	default:
		doc.ID = existing
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE doc_id = ?`, existing); err != nil {
			return errors.NewInternal(err)
		}
	}

	doc.NodeCount = len(nodes)
	doc.IndexedAt = time.Now().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, path, title, node_count, bookmarks, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			node_count = excluded.node_count,
			bookmarks = excluded.bookmarks,
			indexed_at = excluded.indexed_at
	`, doc.ID, doc.Path, doc.Title, doc.NodeCount, doc.Bookmarks, doc.IndexedAt)
	if err != nil {
		return errors.NewInternal(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (
			doc_id, node_id, parent_id, name, name_norm, node_path,
			syntax, tags, body, chars, widgets, ts_lastsave
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("index")
		}
		_, err := stmt.ExecContext(ctx,
			doc.ID, n.NodeID, n.ParentID, n.Name, Normalize(n.Name), n.Path,
			n.Syntax, n.Tags, n.Body, n.Chars, n.Widgets, n.TSLastSave,
		)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetDocument retrieves an indexed document by ID.
func GetDocument(ctx context.Context, db *sql.DB, id string) (*Document, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, path, title, node_count, bookmarks, indexed_at
		FROM documents WHERE id = ?
	`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return doc, nil
}

// ListDocuments returns indexed documents, most recently indexed first,
// and the total count.
func ListDocuments(ctx context.Context, db *sql.DB, limit, offset int) ([]Document, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, path, title, node_count, bookmarks, indexed_at
		FROM documents
		ORDER BY indexed_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return docs, total, nil
}

// DeleteDocument removes a document and its nodes from the catalog.
func DeleteDocument(ctx context.Context, db *sql.DB, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE doc_id = ?`, id); err != nil {
		return errors.NewInternal(err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound(id)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SearchFullText runs query against node names, tags and text. Results are
// ranked by BM25 with name matches weighted highest. It returns one page of
// results and the total match count.
func SearchFullText(ctx context.Context, db *sql.DB, query string, filters SearchFilters, limit, offset int) ([]SearchResult, int, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, 0, errors.NewInvalidRequest("query has no searchable terms")
	}

	where := `nodes_fts MATCH ?`
	args := []any{match}
	if filters.DocID != nil {
		where += ` AND n.doc_id = ?`
		args = append(args, *filters.DocID)
	}

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM nodes_fts
		JOIN nodes n ON n.rowid = nodes_fts.rowid
		WHERE ` + where
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	pageQuery := `
		SELECT d.id, d.path, d.title, d.node_count, d.bookmarks, d.indexed_at,
			n.node_id, n.parent_id, n.name, n.node_path, n.syntax, n.tags,
			n.chars, n.widgets, n.ts_lastsave,
			snippet(nodes_fts, 2, '` + HighlightOpen + `', '` + HighlightClose + `', '...', 24)
		FROM nodes_fts
		JOIN nodes n ON n.rowid = nodes_fts.rowid
		JOIN documents d ON d.id = n.doc_id
		WHERE ` + where + `
		ORDER BY bm25(nodes_fts, 5.0, 2.0, 1.0), n.doc_id, n.node_id
		LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, pageQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0)
	for rows.Next() {
		var r SearchResult
		d, n := &r.Document, &r.Node
		if err := rows.Scan(
			&d.ID, &d.Path, &d.Title, &d.NodeCount, &d.Bookmarks, &d.IndexedAt,
			&n.NodeID, &n.ParentID, &n.Name, &n.Path, &n.Syntax, &n.Tags,
			&n.Chars, &n.Widgets, &n.TSLastSave,
			&r.Snippet,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return results, total, nil
}

// ftsQuery turns free text into an FTS5 query that matches every term.
// Terms are quoted so that FTS5 operators in user input are taken literally.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var d Document
	if err := s.Scan(&d.ID, &d.Path, &d.Title, &d.NodeCount, &d.Bookmarks, &d.IndexedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
