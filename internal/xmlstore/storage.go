// Package xmlstore reads and writes document trees in the single-file XML
// format.
//
// Loading parses the whole file but defers decoding of node content: each
// node's content slots are parked in a DelayedCache and decoded the first
// time the node's buffer is requested. Saving walks the tree and writes every
// node, or a single node or text range for exports.
package xmlstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/widget"
	"github.com/hpungsan/arbor/internal/xmldoc"
)

// DefaultIndent is the number of spaces per nesting level in written files.
const DefaultIndent = 2

// Repair records an identifier reassigned to a duplicate node during load.
type Repair struct {
	OldID int64  `json:"old_id"`
	NewID int64  `json:"new_id"`
	Name  string `json:"name"`
}

// Storage is one document session: the style-tag registry shared by every
// buffer it builds and the delayed content of the last load.
type Storage struct {
	logger  *slog.Logger
	parser  *xmldoc.Parser
	tags    *richtext.TagTable
	delayed *DelayedCache
	indent  int
	session string
	repairs []Repair
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTagTable shares an existing style-tag registry.
func WithTagTable(tags *richtext.TagTable) Option {
	return func(s *Storage) {
		if tags != nil {
			s.tags = tags
		}
	}
}

// WithIndent sets the spaces per nesting level used when writing.
func WithIndent(spaces int) Option {
	return func(s *Storage) {
		if spaces >= 0 {
			s.indent = spaces
		}
	}
}

// NewStorage creates a storage session.
func NewStorage(opts ...Option) *Storage {
	s := &Storage{
		logger:  slog.Default(),
		tags:    richtext.NewTagTable(),
		delayed: NewDelayedCache(),
		indent:  DefaultIndent,
		session: ulid.Make().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.session)
	s.parser = xmldoc.NewParser(xmldoc.AppName, s.logger)
	return s
}

// Session returns the session identifier used in log records.
func (s *Storage) Session() string { return s.session }

// TagTable returns the style-tag registry.
func (s *Storage) TagTable() *richtext.TagTable { return s.tags }

// Repairs returns the duplicate-ID repairs made by the last load.
func (s *Storage) Repairs() []Repair { return s.repairs }

// Pending returns the number of nodes whose content has not been
// materialized since the last load.
func (s *Storage) Pending() int { return s.delayed.Len() }

// PopulateTree loads the document at path into store, replacing its content.
func (s *Storage) PopulateTree(path string, store *tree.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		store.Reset()
		if os.IsNotExist(err) {
			return errors.NewLoadFailed(errors.NewFileNotFound(path))
		}
		return errors.NewLoadFailed(err)
	}
	return s.PopulateTreeFromBytes(data, store)
}

// PopulateTreeFromBytes loads a document into store, replacing its content.
// On failure store is left empty.
func (s *Storage) PopulateTreeFromBytes(data []byte, store *tree.Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during load", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			store.Reset()
			s.delayed = NewDelayedCache()
			s.repairs = nil
			err = errors.NewLoadFailed(err)
		}
	}()

	store.Reset()
	s.delayed = NewDelayedCache()
	s.repairs = nil

	doc, err := s.parser.Parse(data)
	if err != nil {
		return err
	}
	root := doc.Root()

	for _, el := range root.SelectElements(tagBookmarks) {
		for _, id := range xmldoc.SplitInts(xmldoc.Attr(el, "list")) {
			store.AddBookmark(id)
		}
	}

	wc := &walkContext{store: store}
	if err := s.loadChildren(wc, root, nil, 0); err != nil {
		return err
	}

	// IDs are reassigned only after the whole walk so that later nodes are
	// still checked against every ID in the file.
	for _, n := range wc.duplicates {
		old := n.ID
		n.SetID(store.NextID())
		s.repairs = append(s.repairs, Repair{OldID: old, NewID: n.ID, Name: n.Name})
		s.logger.Info("duplicated node id fixed", "old_id", old, "new_id", n.ID, "name", n.Name)
	}

	store.SetLoader(s)
	s.logger.Debug("document loaded", "nodes", store.Len(), "delayed", s.delayed.Len(), "repairs", len(s.repairs))
	return nil
}

// Materialize decodes and removes the delayed content of node id. A second
// call for the same id is a MATERIALIZE_MISS.
func (s *Storage) Materialize(id int64, syntax string) (*richtext.Buffer, []widget.Widget, error) {
	doc, ok := s.delayed.Take(id)
	if !ok {
		s.logger.Error("cannot find xml buffer", "node_id", id)
		return nil, nil, errors.NewMaterializeMiss(id)
	}
	buf, widgets, err := s.decodeSlots(doc.Root(), -1)
	if err != nil {
		s.logger.Error("node content decode failed", "node_id", id, "syntax", syntax, "error", err)
		return nil, nil, err
	}
	return buf, widgets, nil
}

// ImportNodes decodes the document at path under parent (nil for top level).
// Every imported node gets a fresh ID, is decoded eagerly and is marked
// pending. On failure no imported node is left in store.
func (s *Storage) ImportNodes(path string, store *tree.Store, parent *tree.Node) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewLoadFailed(errors.NewFileNotFound(path))
		}
		return errors.NewLoadFailed(err)
	}
	_, err = s.ImportNodesFromBytes(data, store, parent)
	return err
}

// ImportNodesFromBytes is ImportNodes for in-memory content. It returns the
// imported top-level nodes.
func (s *Storage) ImportNodesFromBytes(data []byte, store *tree.Store, parent *tree.Node) (imported []*tree.Node, err error) {
	wc := &walkContext{store: store, importing: true}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during import", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			for _, n := range wc.top {
				store.Remove(n)
			}
			imported = nil
			err = errors.NewLoadFailed(err)
		}
	}()

	doc, err := s.parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(wc, doc.Root(), parent, 0); err != nil {
		return nil, err
	}
	s.logger.Debug("nodes imported", "count", len(wc.top))
	return wc.top, nil
}

// SaveTree writes store to path.
func (s *Storage) SaveTree(ctx context.Context, path string, store *tree.Store, opts SaveOptions) error {
	var buf bytes.Buffer
	if err := s.WriteTree(ctx, &buf, store, opts); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.NewSaveFailed(err)
	}
	return nil
}
