package widget

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/xmldoc"
)

// TagTable is the element name of a table.
const TagTable = "table"

// TableMatrix is a grid of plain-text cells. Rows[0] is the header row.
type TableMatrix struct {
	Rows      [][]string
	ColWidths []int
}

// Header returns the header row, or nil for an empty table.
func (m TableMatrix) Header() []string {
	if len(m.Rows) == 0 {
		return nil
	}
	return m.Rows[0]
}

// Table is a grid widget with a default column width and optional
// per-column overrides.
type Table struct {
	anchored
	TableMatrix
	ColWidthDefault int
}

// NewTable creates a table widget from a matrix whose first row is the header.
func NewTable(matrix TableMatrix, colWidthDefault, offset int, justification string) *Table {
	return &Table{
		anchored:        newAnchored(offset, justification),
		TableMatrix:     matrix,
		ColWidthDefault: colWidthDefault,
	}
}

func (w *Table) Kind() Kind { return KindTable }

func (w *Table) ToXML(parent *etree.Element, bias int, _ *EncodeCache) *etree.Element {
	return TableToXML(parent, w.Rows, w.offset+bias, w.justification, w.ColWidthDefault, xmldoc.JoinInts(w.ColWidths))
}

// DecodeTable builds a table widget from its element. col_max must be
// present and integral.
func DecodeTable(el *etree.Element, offset int, justification string) (Widget, error) {
	colMax, err := xmldoc.IntAttrStrict(el, "col_max")
	if err != nil {
		return nil, err
	}
	return NewTable(PopulateTableMatrix(el), colMax, offset, justification), nil
}

// PopulateTableMatrix reads the rows and column widths of a table element.
// The header row is stored last and is moved to the front.
func PopulateTableMatrix(el *etree.Element) TableMatrix {
	var m TableMatrix
	for _, rowEl := range el.SelectElements("row") {
		row := []string{}
		for _, cellEl := range rowEl.SelectElements("cell") {
			row = append(row, cellEl.Text())
		}
		m.Rows = append(m.Rows, row)
	}
	if n := len(m.Rows); n > 1 {
		header := m.Rows[n-1]
		copy(m.Rows[1:], m.Rows[:n-1])
		m.Rows[0] = header
	}
	if csv := xmldoc.Attr(el, "col_widths"); csv != "" {
		for _, v := range xmldoc.SplitInts(csv) {
			m.ColWidths = append(m.ColWidths, int(v))
		}
	}
	return m
}

// TableToXML appends a table element to parent. rows[0] is the header and is
// written after the other rows. The default width is written as both col_min
// and col_max.
func TableToXML(parent *etree.Element, rows [][]string, charOffset int, justification string, defaultWidth int, colWidths string) *etree.Element {
	if justification == "" {
		justification = JustifyLeft
	}
	el := parent.CreateElement(TagTable)
	el.CreateAttr("char_offset", strconv.Itoa(charOffset))
	el.CreateAttr("justification", justification)
	el.CreateAttr("col_min", strconv.Itoa(defaultWidth))
	el.CreateAttr("col_max", strconv.Itoa(defaultWidth))
	el.CreateAttr("col_widths", colWidths)

	if len(rows) == 0 {
		return el
	}
	for _, row := range rows[1:] {
		rowToXML(el, row)
	}
	rowToXML(el, rows[0])
	return el
}

func rowToXML(table *etree.Element, row []string) {
	rowEl := table.CreateElement("row")
	for _, cell := range row {
		rowEl.CreateElement("cell").SetText(cell)
	}
}
