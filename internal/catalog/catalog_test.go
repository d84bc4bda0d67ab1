package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleNodes() []NodeRecord {
	return []NodeRecord{
		{NodeID: 1, Name: "Garden Plans", Path: "Garden Plans", Syntax: "custom-colors", Body: "tomatoes and basil along the south fence", Chars: 40},
		{NodeID: 2, ParentID: 1, Name: "Watering", Path: "Garden Plans / Watering", Syntax: "plain-text", Tags: "water schedule", Body: "every morning before nine", Chars: 25},
		{NodeID: 3, Name: "Build Script", Path: "Build Script", Syntax: "sh", Body: "go build ./... && echo tomatoes", Chars: 31, Widgets: 1},
	}
}

func TestInit_CreatesSchema(t *testing.T) {
	dir := t.TempDir()
	db, err := Init(dir)
	require.NoError(t, err)
	defer db.Close()

	version, err := GetUserVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	info, err := os.Stat(filepath.Join(dir, "exports"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestInit_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Init(dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Init(dir)
	require.NoError(t, err)
	defer db.Close()

	version, err := GetUserVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestConfigurePool_NilConfig(t *testing.T) {
	db := setupDB(t)
	ConfigurePool(db, nil)
	ConfigurePool(db, &config.Config{DBMaxOpenConns: 2, DBMaxIdleConns: 1})
	assert.Equal(t, 2, db.Stats().MaxOpenConnections)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Garden   Plans ", "garden plans"},
		{"ALL\tCAPS\nhere", "all caps here"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestReplaceDocument_KeepsIDAcrossReindex(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	doc := &Document{Path: "/notes/garden.ctd", Title: "garden"}
	require.NoError(t, ReplaceDocument(ctx, db, doc, sampleNodes()))
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, 3, doc.NodeCount)
	firstID := doc.ID

	again := &Document{Path: "/notes/garden.ctd", Title: "garden v2"}
	require.NoError(t, ReplaceDocument(ctx, db, again, sampleNodes()[:1]))
	assert.Equal(t, firstID, again.ID)

	got, err := GetDocument(ctx, db, firstID)
	require.NoError(t, err)
	assert.Equal(t, "garden v2", got.Title)
	assert.Equal(t, 1, got.NodeCount)

	results, total, err := SearchFullText(ctx, db, "morning", SearchFilters{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, results)
}

func TestGetDocument_NotFound(t *testing.T) {
	db := setupDB(t)
	_, err := GetDocument(context.Background(), db, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestListDocuments(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	for _, p := range []string{"/a.ctd", "/b.ctd", "/c.ctd"} {
		require.NoError(t, ReplaceDocument(ctx, db, &Document{Path: p, Title: p}, nil))
	}

	docs, total, err := ListDocuments(ctx, db, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, docs, 2)

	docs, _, err = ListDocuments(ctx, db, 2, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDeleteDocument(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	doc := &Document{Path: "/notes/garden.ctd", Title: "garden"}
	require.NoError(t, ReplaceDocument(ctx, db, doc, sampleNodes()))

	require.NoError(t, DeleteDocument(ctx, db, doc.ID))
	_, err := GetDocument(ctx, db, doc.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, total, err := SearchFullText(ctx, db, "tomatoes", SearchFilters{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	err = DeleteDocument(ctx, db, doc.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSearchFullText(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	doc := &Document{Path: "/notes/garden.ctd", Title: "garden"}
	require.NoError(t, ReplaceDocument(ctx, db, doc, sampleNodes()))
	other := &Document{Path: "/notes/other.ctd", Title: "other"}
	require.NoError(t, ReplaceDocument(ctx, db, other, []NodeRecord{
		{NodeID: 7, Name: "Tomatoes", Path: "Tomatoes", Syntax: "custom-colors", Body: "heirloom"},
	}))

	results, total, err := SearchFullText(ctx, db, "tomatoes", SearchFilters{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, results, 3)
	// Name matches rank above body matches.
	assert.Equal(t, int64(7), results[0].Node.NodeID)
	assert.Equal(t, other.ID, results[0].Document.ID)

	results, total, err = SearchFullText(ctx, db, "tomatoes", SearchFilters{DocID: &doc.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, r := range results {
		assert.Equal(t, doc.ID, r.Document.ID)
		assert.Contains(t, r.Snippet, HighlightOpen)
	}

	results, _, err = SearchFullText(ctx, db, "schedule", SearchFilters{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Garden Plans / Watering", results[0].Node.Path)
}

func TestSearchFullText_OperatorsAreLiteral(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, ReplaceDocument(ctx, db, &Document{Path: "/x.ctd"}, sampleNodes()))

	_, _, err := SearchFullText(ctx, db, `basil OR "fence`, SearchFilters{}, 10, 0)
	require.NoError(t, err)

	_, _, err = SearchFullText(ctx, db, "   ", SearchFilters{}, 10, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"a" "b"`, ftsQuery(" a  b "))
	assert.Equal(t, `"say""hi"`, ftsQuery(`say"hi`))
	assert.Equal(t, "", ftsQuery(""))
}
