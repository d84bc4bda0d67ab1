package widget

import (
	"context"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/arbor/internal/errors"
	"github.com/hpungsan/arbor/internal/richtext"
)

func parseElement(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func TestDecodeImage_Variants(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		kind Kind
	}{
		{"anchor", `<encoded_png char_offset="3" anchor="intro"/>`, KindAnchor},
		{"embedded file", `<encoded_png char_offset="3" filename="a.txt" time="1612345678.5">aGVsbG8=</encoded_png>`, KindEmbeddedFile},
		{"png", `<encoded_png char_offset="3" link="webs https://x.org">aGVsbG8=</encoded_png>`, KindImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := DecodeImage(parseElement(t, tt.xml), 3, "")
			require.NoError(t, err)
			assert.Equal(t, tt.kind, w.Kind())
			assert.Equal(t, 3, w.Offset())
			assert.Equal(t, JustifyLeft, w.Justification())
		})
	}
}

func TestDecodeImage_Payloads(t *testing.T) {
	w, err := DecodeImage(parseElement(t, `<encoded_png filename="a.txt" time="1612345678.5">aGVs
bG8=</encoded_png>`), 0, JustifyCenter)
	require.NoError(t, err)
	file := w.(*EmbeddedFile)
	assert.Equal(t, "a.txt", file.FileName)
	assert.Equal(t, []byte("hello"), file.Blob)
	assert.InDelta(t, 1612345678.5, file.Time, 1e-9)
	assert.Equal(t, JustifyCenter, file.Justification())

	w, err = DecodeImage(parseElement(t, `<encoded_png link="node 4"/>`), 0, "")
	require.NoError(t, err)
	img := w.(*ImagePng)
	assert.Equal(t, "node 4", img.Link)
	assert.Equal(t, []byte{}, img.Blob)
}

func TestDecodeImage_MissingTimeDefaultsToZero(t *testing.T) {
	w, err := DecodeImage(parseElement(t, `<encoded_png filename="a.bin"/>`), 0, "")
	require.NoError(t, err)
	assert.Zero(t, w.(*EmbeddedFile).Time)
}

func TestDecodeImage_MalformedTime(t *testing.T) {
	_, err := DecodeImage(parseElement(t, `<encoded_png filename="a.bin" time="yesterday"/>`), 0, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedNumeric))
}

func TestImage_ToXML(t *testing.T) {
	parent := etree.NewElement("node")

	NewImagePng([]byte("hello"), "", 15, "").ToXML(parent, -10, nil)
	NewAnchor("here", 2, JustifyRight).ToXML(parent, 0, nil)
	NewEmbeddedFile("a.txt", []byte("hi"), 12.5, 7, "").ToXML(parent, 0, nil)

	children := parent.ChildElements()
	require.Len(t, children, 3)

	assert.Equal(t, "5", children[0].SelectAttrValue("char_offset", ""))
	assert.Equal(t, "left", children[0].SelectAttrValue("justification", ""))
	assert.Equal(t, "aGVsbG8=", children[0].Text())

	assert.Equal(t, "here", children[1].SelectAttrValue("anchor", ""))
	assert.Equal(t, "right", children[1].SelectAttrValue("justification", ""))
	assert.Empty(t, children[1].Text())

	assert.Equal(t, "a.txt", children[2].SelectAttrValue("filename", ""))
	assert.Equal(t, "12.500000", children[2].SelectAttrValue("time", ""))
	assert.Equal(t, "aGk=", children[2].Text())
}

func TestCodeBox_RoundTrip(t *testing.T) {
	src := `<codebox char_offset="4" justification="center" frame_width="500" frame_height="120" width_in_pixels="1" syntax_highlighting="python" highlight_brackets="true" show_line_numbers="0">print("x")</codebox>`

	w, err := DecodeCodeBox(parseElement(t, src), 4, JustifyCenter)
	require.NoError(t, err)
	box := w.(*CodeBox)
	assert.Equal(t, `print("x")`, box.Text)
	assert.Equal(t, "python", box.Syntax)
	assert.Equal(t, 500, box.FrameWidth)
	assert.Equal(t, 120, box.FrameHeight)
	assert.True(t, box.WidthInPixels)
	assert.True(t, box.HighlightBrackets)
	assert.False(t, box.ShowLineNumbers)

	parent := etree.NewElement("node")
	el := box.ToXML(parent, 0, nil)
	assert.Equal(t, "4", el.SelectAttrValue("char_offset", ""))
	assert.Equal(t, "center", el.SelectAttrValue("justification", ""))
	assert.Equal(t, "500", el.SelectAttrValue("frame_width", ""))
	assert.Equal(t, "120", el.SelectAttrValue("frame_height", ""))
	assert.Equal(t, "1", el.SelectAttrValue("width_in_pixels", ""))
	assert.Equal(t, "1", el.SelectAttrValue("highlight_brackets", ""))
	assert.Equal(t, "0", el.SelectAttrValue("show_line_numbers", ""))
	assert.Equal(t, `print("x")`, el.Text())
}

func TestDecodeCodeBox_MalformedGeometry(t *testing.T) {
	tests := []string{
		`<codebox frame_width="abc" frame_height="10"/>`,
		`<codebox frame_width="10"/>`,
	}
	for _, src := range tests {
		_, err := DecodeCodeBox(parseElement(t, src), 0, "")
		require.Error(t, err, src)
		assert.True(t, errors.Is(err, errors.ErrMalformedNumeric), src)
	}
}

func TestPopulateTableMatrix_RotatesHeader(t *testing.T) {
	el := parseElement(t, `<table char_offset="0" col_max="40" col_widths="10,0,25">
<row><cell>a1</cell><cell>a2</cell></row>
<row><cell>b1</cell><cell/></row>
<row><cell>H1</cell><cell>H2</cell></row>
</table>`)

	m := PopulateTableMatrix(el)
	require.Len(t, m.Rows, 3)
	assert.Equal(t, []string{"H1", "H2"}, m.Header())
	assert.Equal(t, []string{"a1", "a2"}, m.Rows[1])
	assert.Equal(t, []string{"b1", ""}, m.Rows[2])
	assert.Equal(t, []int{10, 0, 25}, m.ColWidths)
}

func TestPopulateTableMatrix_NoWidths(t *testing.T) {
	m := PopulateTableMatrix(parseElement(t, `<table><row><cell>only</cell></row></table>`))
	assert.Equal(t, [][]string{{"only"}}, m.Rows)
	assert.Nil(t, m.ColWidths)
	assert.Nil(t, TableMatrix{}.Header())
}

func TestTableToXML_HeaderWrittenLast(t *testing.T) {
	parent := etree.NewElement("node")
	rows := [][]string{{"H"}, {"A"}, {"B"}}

	el := TableToXML(parent, rows, 9, "", 60, "5,6")
	assert.Equal(t, "9", el.SelectAttrValue("char_offset", ""))
	assert.Equal(t, "left", el.SelectAttrValue("justification", ""))
	assert.Equal(t, "60", el.SelectAttrValue("col_min", ""))
	assert.Equal(t, "60", el.SelectAttrValue("col_max", ""))
	assert.Equal(t, "5,6", el.SelectAttrValue("col_widths", ""))

	var got []string
	for _, row := range el.SelectElements("row") {
		got = append(got, row.SelectElement("cell").Text())
	}
	assert.Equal(t, []string{"A", "B", "H"}, got)
}

func TestTableToXML_Empty(t *testing.T) {
	el := TableToXML(etree.NewElement("node"), nil, 0, "", 40, "")
	assert.Empty(t, el.SelectElements("row"))
	assert.NotNil(t, el.SelectAttr("col_widths"))
}

func TestTable_RoundTrip(t *testing.T) {
	src := parseElement(t, `<table char_offset="2" justification="fill" col_min="30" col_max="30" col_widths="1,2"><row><cell>A</cell><cell>B</cell></row><row><cell>H</cell><cell>I</cell></row></table>`)

	w, err := DecodeTable(src, 2, JustifyFill)
	require.NoError(t, err)
	table := w.(*Table)
	assert.Equal(t, 30, table.ColWidthDefault)
	assert.Equal(t, []string{"H", "I"}, table.Header())

	el := table.ToXML(etree.NewElement("node"), 0, nil)
	rows := el.SelectElements("row")
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].SelectElement("cell").Text())
	assert.Equal(t, "H", rows[1].SelectElement("cell").Text())
	assert.Equal(t, "1,2", el.SelectAttrValue("col_widths", ""))
	assert.Equal(t, "fill", el.SelectAttrValue("justification", ""))
}

func TestDecodeTable_MalformedColMax(t *testing.T) {
	_, err := DecodeTable(parseElement(t, `<table col_max="wide"/>`), 0, "")
	assert.True(t, errors.Is(err, errors.ErrMalformedNumeric))
}

func TestInsertInto_PlacesAnchor(t *testing.T) {
	buf := richtext.NewBuffer(nil)
	buf.Append("abcdef")

	w := NewAnchor("x", 2, "")
	w.InsertInto(buf)
	assert.Equal(t, []int{2}, buf.AnchorOffsets())

	far := NewCodeBox("", "", 10, 10, 100, "")
	far.InsertInto(buf)
	assert.Equal(t, 7, far.Offset())
}

func TestSortAndRange(t *testing.T) {
	a := NewAnchor("a", 20, "")
	b := NewAnchor("b", 5, "")
	c := NewAnchor("c", 10, "")
	widgets := []Widget{a, b, c}

	SortByOffset(widgets)
	assert.Equal(t, []Widget{b, c, a}, widgets)

	assert.Equal(t, []Widget{c}, InRange(widgets, 10, 20))
	assert.Equal(t, []Widget{c, a}, InRange(widgets, 6, -1))
	assert.Empty(t, InRange(widgets, 21, -1))
}

func TestEncodeCache(t *testing.T) {
	img := NewImagePng([]byte("hello"), "", 0, "")
	file := NewEmbeddedFile("f", []byte("hi"), 0, 1, "")
	anchor := NewAnchor("a", 2, "")

	cache := NewEncodeCache()
	require.NoError(t, cache.Generate(context.Background(), []Widget{img, file, anchor}))
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, "aGVsbG8=", cache.Encoded(img))
	assert.Equal(t, "aGk=", cache.Encoded(file))

	var nilCache *EncodeCache
	assert.Equal(t, "aGk=", nilCache.Encoded(file))
	assert.Zero(t, nilCache.Len())
}

func TestEncodeCache_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEncodeCache().Generate(ctx, []Widget{NewImagePng([]byte("x"), "", 0, "")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeBlob(t *testing.T) {
	assert.Equal(t, []byte{}, decodeBlob(""))
	assert.Equal(t, []byte("hello"), decodeBlob(" aGVs\n bG8= "))
	assert.Equal(t, []byte("hello"), decodeBlob("aGVsbG8"))
	assert.Equal(t, []byte("hel"), decodeBlob("aGVs!!!!"))
}
