package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/arbor/internal/errors"
)

const clippingsDoc = `<?xml version="1.0" encoding="UTF-8"?>
<cherrytree>
  <bookmarks list="1"/>
  <node name="Clippings" unique_id="1" prog_lang="custom-colors">
    <rich_text>saved</rich_text>
    <node name="Recipe" unique_id="2" prog_lang="custom-colors"><rich_text>soup</rich_text></node>
  </node>
</cherrytree>
`

func TestImport_UnderParent(t *testing.T) {
	cfg, dir := testEnv(t)
	target := writeDoc(t, dir, "garden.ctd", gardenDoc)
	source := writeDoc(t, dir, "clippings.ctd", clippingsDoc)
	ctx := context.Background()

	out, err := Import(ctx, cfg, ImportInput{Target: target, Source: source, ParentID: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Imported, 1)
	assert.Equal(t, NodeRef{ID: 4, Name: "Clippings"}, out.Imported[0])

	back, err := Inspect(ctx, cfg, InspectInput{Path: target})
	require.NoError(t, err)
	assert.Equal(t, 5, back.NodeCount)
	// Bookmarks of the source are not merged.
	assert.Equal(t, []int64{2}, back.Bookmarks)

	byName := map[string]NodeSummary{}
	for _, n := range back.Nodes {
		byName[n.Name] = n
	}
	assert.Equal(t, int64(3), byName["Clippings"].ParentID)
	assert.Equal(t, "Script / Clippings / Recipe", byName["Recipe"].Path)
	assert.Equal(t, int64(5), byName["Recipe"].ID)

	text, err := NodeText(ctx, cfg, NodeTextInput{Path: target, NodeID: idPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, "soup", text.Text)

	// Existing content survives the rewrite.
	text, err = NodeText(ctx, cfg, NodeTextInput{Path: target, NodeID: idPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, "tomatoes and basil bold", text.Text)
}

func TestImport_TopLevel(t *testing.T) {
	cfg, dir := testEnv(t)
	target := writeDoc(t, dir, "garden.ctd", gardenDoc)
	source := writeDoc(t, dir, "clippings.ctd", clippingsDoc)

	_, err := Import(context.Background(), cfg, ImportInput{Target: target, Source: source})
	require.NoError(t, err)

	back, err := Inspect(context.Background(), cfg, InspectInput{Path: target, MaxDepth: 1})
	require.NoError(t, err)
	require.Len(t, back.Nodes, 3)
	assert.Equal(t, "Clippings", back.Nodes[2].Name)
}

func TestImport_BadSourceLeavesTargetUntouched(t *testing.T) {
	cfg, dir := testEnv(t)
	target := writeDoc(t, dir, "garden.ctd", gardenDoc)
	source := writeDoc(t, dir, "broken.ctd", `<cherrytree><node name="x" unique_id="1"><codebox char_offset="0" frame_width="wide" frame_height="1">c</codebox></node></cherrytree>`)

	_, err := Import(context.Background(), cfg, ImportInput{Target: target, Source: source})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLoadFailed))
	assert.True(t, errors.Is(err, errors.ErrMalformedNumeric))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, gardenDoc, string(data))
}

func TestImport_Errors(t *testing.T) {
	cfg, dir := testEnv(t)
	target := writeDoc(t, dir, "garden.ctd", gardenDoc)
	source := writeDoc(t, dir, "clippings.ctd", clippingsDoc)
	ctx := context.Background()

	_, err := Import(ctx, cfg, ImportInput{Target: target})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(ctx, cfg, ImportInput{Target: target, Source: source, ParentID: 77})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = Import(ctx, cfg, ImportInput{Target: target, Source: filepath.Join(dir, "missing.ctd")})
	assert.True(t, errors.Is(err, errors.ErrFileNotFound))
}
