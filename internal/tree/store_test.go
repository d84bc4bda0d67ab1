package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/arbor/internal/richtext"
	"github.com/hpungsan/arbor/internal/widget"
)

type fakeLoader struct {
	calls []int64
	err   error
}

func (f *fakeLoader) Materialize(id int64, _ string) (*richtext.Buffer, []widget.Widget, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, nil, f.err
	}
	buf := richtext.NewBuffer(nil)
	buf.Append("loaded")
	buf.InsertAnchor(6)
	return buf, []widget.Widget{widget.NewAnchor("end", 6, "")}, nil
}

func buildStore() *Store {
	s := NewStore()
	a := s.AppendNode(NodeData{ID: 1, Name: "a", Sequence: 1}, nil)
	s.AppendNode(NodeData{ID: 5, Name: "a1", Sequence: 1}, a)
	s.AppendNode(NodeData{ID: 3, Name: "a2", Sequence: 2}, a)
	s.AppendNode(NodeData{ID: 2, Name: "b", Sequence: 2}, nil)
	return s
}

func TestStore_AppendAndWalk(t *testing.T) {
	s := buildStore()

	var names []string
	s.Walk(func(n *Node) bool {
		names = append(names, n.Name)
		return true
	})
	assert.Equal(t, []string{"a", "a1", "a2", "b"}, names)
	assert.Equal(t, 4, s.Len())
	require.Len(t, s.Roots(), 2)
	assert.Len(t, s.Roots()[0].Children(), 2)
}

func TestStore_WalkSkipsChildren(t *testing.T) {
	s := buildStore()

	var names []string
	s.Walk(func(n *Node) bool {
		names = append(names, n.Name)
		return false
	})
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestStore_NextIDAboveMax(t *testing.T) {
	s := buildStore()
	assert.Equal(t, int64(6), s.NextID())
	assert.Equal(t, int64(7), s.NextID())

	s.Find(2).SetID(40)
	assert.Equal(t, int64(41), s.NextID())
}

func TestStore_FindAndPath(t *testing.T) {
	s := buildStore()

	n := s.Find(3)
	require.NotNil(t, n)
	assert.Equal(t, "a2", n.Name)
	assert.Equal(t, []string{"a", "a2"}, n.Path())
	assert.Equal(t, 1, n.Depth())
	assert.Equal(t, "a", n.Parent().Name)
	assert.Nil(t, s.Find(99))
}

func TestStore_Bookmarks(t *testing.T) {
	s := NewStore()
	s.AddBookmark(3)
	s.AddBookmark(1)
	s.AddBookmark(3)
	assert.Equal(t, []int64{3, 1}, s.Bookmarks())

	s.RemoveBookmark(3)
	assert.Equal(t, []int64{1}, s.Bookmarks())
}

func TestStore_Reset(t *testing.T) {
	s := buildStore()
	s.AddBookmark(1)
	s.Reset()

	assert.Zero(t, s.Len())
	assert.Empty(t, s.Bookmarks())
	assert.Equal(t, int64(1), s.NextID())
}

func TestNode_TextBufferLazy(t *testing.T) {
	s := buildStore()
	loader := &fakeLoader{}
	s.SetLoader(loader)

	n := s.Find(5)
	assert.False(t, n.Loaded())

	buf, err := n.TextBuffer()
	require.NoError(t, err)
	assert.Equal(t, "loaded", buf.Text(0, -1))
	assert.True(t, n.Loaded())

	_, err = n.TextBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, loader.calls)

	widgets, err := n.AnchoredWidgets(0, -1)
	require.NoError(t, err)
	assert.Len(t, widgets, 1)

	widgets, err = n.AnchoredWidgets(0, 6)
	require.NoError(t, err)
	assert.Empty(t, widgets)
}

func TestNode_TextBufferLoaderError(t *testing.T) {
	s := buildStore()
	loader := &fakeLoader{err: errors.New("gone")}
	s.SetLoader(loader)

	_, err := s.Find(1).TextBuffer()
	assert.EqualError(t, err, "gone")
	assert.False(t, s.Find(1).Loaded())

	_, err = s.Find(1).TextBuffer()
	assert.EqualError(t, err, "gone")
	_, err = s.Find(1).AnchoredWidgets(0, -1)
	assert.EqualError(t, err, "gone")
	assert.Equal(t, []int64{1}, loader.calls)
}

func TestNode_TextBufferWithoutLoader(t *testing.T) {
	s := buildStore()

	buf, err := s.Find(2).TextBuffer()
	require.NoError(t, err)
	assert.Zero(t, buf.CharCount())
}

func TestNode_AddWidget(t *testing.T) {
	s := NewStore()
	n := s.AppendNode(NodeData{ID: 1}, nil)
	n.SetContent(richtext.NewBuffer(nil), nil)
	buf, _ := n.TextBuffer()
	buf.Append("hello")

	require.NoError(t, n.AddWidget(widget.NewAnchor("b", 5, "")))
	require.NoError(t, n.AddWidget(widget.NewAnchor("a", 0, "")))

	widgets, err := n.AnchoredWidgets(0, -1)
	require.NoError(t, err)
	require.Len(t, widgets, 2)
	assert.Equal(t, 0, widgets[0].Offset())
	assert.Equal(t, 6, widgets[1].Offset())
	assert.Equal(t, []int{0, 6}, buf.AnchorOffsets())
}

func TestNode_PendingNew(t *testing.T) {
	n := NewStore().AppendNode(NodeData{ID: 1}, nil)
	assert.False(t, n.PendingNew())
	n.MarkPendingNew()
	assert.True(t, n.PendingNew())
	n.ClearPendingNew()
	assert.False(t, n.PendingNew())
}

func TestNodeData_IsRichText(t *testing.T) {
	assert.True(t, NodeData{}.IsRichText())
	assert.True(t, NodeData{Syntax: SyntaxRichText}.IsRichText())
	assert.False(t, NodeData{Syntax: "python"}.IsRichText())
}
