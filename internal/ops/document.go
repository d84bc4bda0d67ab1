package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/tree"
	"github.com/hpungsan/arbor/internal/xmlstore"
)

// Document is a loaded document: the node tree and the storage session that
// materializes node content on demand.
type Document struct {
	Path    string
	Storage *xmlstore.Storage
	Tree    *tree.Store
}

// LoadDocument validates path for reading and loads it.
func LoadDocument(ctx context.Context, cfg *config.Config, path string) (*Document, error) {
	if err := ValidatePath(path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	data, err := readDocument(ctx, path)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Path:    path,
		Storage: newStorage(cfg),
		Tree:    tree.NewStore(),
	}
	if err := doc.Storage.PopulateTreeFromBytes(data, doc.Tree); err != nil {
		return nil, err
	}
	return doc, nil
}

// Node returns the node with the given ID.
func (d *Document) Node(id int64) (*tree.Node, error) {
	n := d.Tree.Find(id)
	if n == nil {
		return nil, errors.NewNotFound(strconv.FormatInt(id, 10))
	}
	return n, nil
}

// IsBookmarked reports whether id is in the document's bookmark list.
func (d *Document) IsBookmarked(id int64) bool {
	for _, b := range d.Tree.Bookmarks() {
		if b == id {
			return true
		}
	}
	return false
}

// Save rewrites the document in place. Path must pass the write check.
func (d *Document) Save(ctx context.Context, cfg *config.Config) error {
	if err := ValidatePath(d.Path, PathCheckWrite, cfg); err != nil {
		return err
	}
	return writeAtomic(d.Path, func(w io.Writer) error {
		return d.Storage.WriteTree(ctx, w, d.Tree, xmlstore.DefaultSaveOptions())
	})
}

func newStorage(cfg *config.Config) *xmlstore.Storage {
	var opts []xmlstore.Option
	if cfg != nil && cfg.IndentSpaces > 0 {
		opts = append(opts, xmlstore.WithIndent(cfg.IndentSpaces))
	}
	return xmlstore.NewStorage(opts...)
}

// readDocument reads a validated path without following a final symlink.
func readDocument(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("read")
	}
	f, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.ArborError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return data, nil
}

// writeAtomic writes a file through write into a temp file next to path and
// renames it into place, so a failed write leaves any existing file intact.
func writeAtomic(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create temp file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(file); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before the rename; Windows requires it.
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close temp file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if isSymlink(path) {
		return errors.NewInvalidRequest("destination is a symlink")
	}

	// On Windows os.Rename fails when the destination exists. The existing
	// file is kept rather than deleted first.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("destination already exists; overwriting is not supported on Windows yet")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize write: %w", err))
	}

	success = true
	return nil
}
