package xl

import (
	"fmt"
	"math"
	"strings"
)

// Column width limits in characters and row height limits in points.
const (
	MinColumnWidth = 0.0
	MaxColumnWidth = 255.0
	MinRowHeight   = 0.0
	MaxRowHeight   = 409.0

	// DefaultColumnWidth is written for used columns without an explicit
	// width; such columns are also flagged as best fit.
	DefaultColumnWidth = 10.0
)

// MergeRegion is a rectangle of cells displayed as one. Start is the top
// left corner and holds the visible value.
type MergeRegion struct {
	Start CellRef
	End   CellRef
}

func (m MergeRegion) String() string {
	return m.Start.String() + ":" + m.End.String()
}

// Sheet is a worksheet of a Workbook. Cells may be added in any order; they
// are written in row-major order. Sheets are created with Workbook.AddSheet.
type Sheet struct {
	workbook *Workbook
	name     string
	id       int
	rid      string
	path     string // absolute part name

	cells      map[uint64]Cell
	merges     map[uint64]MergeRegion
	usedCols   map[int]struct{}
	colWidths  map[int]float64
	rowHeights map[int]float64
}

func newSheet(wb *Workbook, name string, id int) *Sheet {
	return &Sheet{
		workbook:   wb,
		name:       name,
		id:         id,
		rid:        fmt.Sprintf("rId%d", id+1),
		path:       fmt.Sprintf("/xl/worksheets/sheet%d.xml", id),
		cells:      map[uint64]Cell{},
		merges:     map[uint64]MergeRegion{},
		usedCols:   map[int]struct{}{},
		colWidths:  map[int]float64{},
		rowHeights: map[int]float64{},
	}
}

// Name is the name shown on the sheet tab.
func (s *Sheet) Name() string { return s.name }

// ID is the 1-based sheet number, also used in the part name.
func (s *Sheet) ID() int { return s.id }

// Len returns the number of cells, including the empty cells of merges.
func (s *Sheet) Len() int { return len(s.cells) }

// Cell returns the cell at pos, if any.
func (s *Sheet) Cell(pos Position) (Cell, bool) {
	ref, err := pos.resolve()
	if err != nil {
		return Cell{}, false
	}
	c, ok := s.cells[ref.key()]
	return c, ok
}

// Cells returns all cells ordered by row, then column.
func (s *Sheet) Cells() []Cell {
	keys := sortedKeys(s.cells)
	ret := make([]Cell, len(keys))
	for i, k := range keys {
		ret[i] = s.cells[k]
	}
	return ret
}

// Merges returns the merge regions ordered by their start cell.
func (s *Sheet) Merges() []MergeRegion {
	var ret []MergeRegion
	enumerate(s.merges, func(_ uint64, m MergeRegion) error {
		ret = append(ret, m)
		return nil
	})
	return ret
}

func (s *Sheet) ColumnWidth(col int) (float64, bool) {
	w, ok := s.colWidths[col]
	return w, ok
}

func (s *Sheet) RowHeight(row int) (float64, bool) {
	h, ok := s.rowHeights[row]
	return h, ok
}

// AddNumber adds a numeric cell. The optional style defaults to GenericStyle.
func (s *Sheet) AddNumber(pos Position, v float64, style ...CellStyle) error {
	return s.add(pos, CellTypeNumber, v, "", pickStyle(GenericStyle, style))
}

// AddFormula adds a formula cell. A leading '=' is dropped. The optional
// style defaults to GenericStyle.
func (s *Sheet) AddFormula(pos Position, formula string, style ...CellStyle) error {
	return s.add(pos, CellTypeFormula, math.NaN(), strings.TrimPrefix(formula, "="), pickStyle(GenericStyle, style))
}

// AddString adds a string cell. The optional style defaults to
// GenericStringStyle.
func (s *Sheet) AddString(pos Position, v string, style ...CellStyle) error {
	return s.add(pos, CellTypeString, math.NaN(), v, pickStyle(GenericStringStyle, style))
}

// AddMergedNumber merges the rectangle from..to and places v in its top
// left cell.
func (s *Sheet) AddMergedNumber(from, to Position, v float64, style ...CellStyle) error {
	return s.addMerged(from, to, CellTypeNumber, v, "", pickStyle(GenericStyle, style))
}

func (s *Sheet) AddMergedFormula(from, to Position, formula string, style ...CellStyle) error {
	return s.addMerged(from, to, CellTypeFormula, math.NaN(), strings.TrimPrefix(formula, "="), pickStyle(GenericStyle, style))
}

func (s *Sheet) AddMergedString(from, to Position, v string, style ...CellStyle) error {
	return s.addMerged(from, to, CellTypeString, math.NaN(), v, pickStyle(GenericStringStyle, style))
}

func pickStyle(def CellStyle, style []CellStyle) CellStyle {
	if len(style) > 0 {
		return style[0]
	}
	return def
}

func (s *Sheet) add(pos Position, typ CellType, num float64, text string, style CellStyle) error {
	ref, err := pos.resolve()
	if err != nil {
		return err
	}
	text, err = preparePayload(typ, num, text)
	if err != nil {
		return fmt.Errorf("cell %s: %w", ref, err)
	}
	if err := style.validate(); err != nil {
		return fmt.Errorf("cell %s: %w", ref, err)
	}
	if _, exists := s.cells[ref.key()]; exists {
		return fmt.Errorf("%w: cell %s on sheet '%s'", ErrDuplicateEntry, ref, s.name)
	}
	s.insert(Cell{
		Ref:        ref,
		Type:       typ,
		StyleIndex: s.workbook.styles.intern(style),
		Number:     num,
		Text:       text,
	})
	return nil
}

func (s *Sheet) insert(c Cell) {
	s.cells[c.Ref.key()] = c
	s.usedCols[c.Ref.Col] = struct{}{}
}

// addMerged checks the whole rectangle before inserting anything, so a
// failed merge leaves the sheet unchanged.
func (s *Sheet) addMerged(from, to Position, typ CellType, num float64, text string, style CellStyle) error {
	start, err := from.resolve()
	if err != nil {
		return err
	}
	end, err := to.resolve()
	if err != nil {
		return err
	}
	if start.Row > end.Row || start.Col > end.Col {
		return fmt.Errorf("%w: merge %s:%s is not ordered top left to bottom right", ErrInvalidFormat, start, end)
	}
	if start == end {
		return fmt.Errorf("%w: merge %s:%s covers a single cell", ErrInvalidFormat, start, end)
	}
	text, err = preparePayload(typ, num, text)
	if err != nil {
		return fmt.Errorf("cell %s: %w", start, err)
	}
	if err := style.validate(); err != nil {
		return fmt.Errorf("cell %s: %w", start, err)
	}

	region := MergeRegion{Start: start, End: end}
	if ref, taken := s.firstTaken(region); taken {
		return fmt.Errorf("%w: cell %s on sheet '%s' (merge %s)", ErrDuplicateEntry, ref, s.name, region)
	}

	si := s.workbook.styles.intern(style)
	s.insert(Cell{Ref: start, Type: typ, StyleIndex: si, Number: num, Text: text})
	for row := start.Row; row <= end.Row; row++ {
		for col := start.Col; col <= end.Col; col++ {
			ref := CellRef{Row: row, Col: col}
			if ref == start {
				continue
			}
			s.insert(Cell{Ref: ref, Type: CellTypeEmpty, StyleIndex: si, Number: math.NaN()})
		}
	}
	s.merges[start.key()] = region
	return nil
}

// firstTaken reports the first occupied cell inside m in row-major order.
func (s *Sheet) firstTaken(m MergeRegion) (CellRef, bool) {
	area := int64(m.End.Row-m.Start.Row+1) * int64(m.End.Col-m.Start.Col+1)
	if area <= int64(len(s.cells)) {
		for row := m.Start.Row; row <= m.End.Row; row++ {
			for col := m.Start.Col; col <= m.End.Col; col++ {
				ref := CellRef{Row: row, Col: col}
				if _, ok := s.cells[ref.key()]; ok {
					return ref, true
				}
			}
		}
		return CellRef{}, false
	}

	var first CellRef
	found := false
	for k := range s.cells {
		ref := refFromKey(k)
		if ref.Row < m.Start.Row || ref.Row > m.End.Row || ref.Col < m.Start.Col || ref.Col > m.End.Col {
			continue
		}
		if !found || ref.key() < first.key() {
			first, found = ref, true
		}
	}
	return first, found
}

// SetColumnWidth sets the width of a column in characters, replacing any
// earlier width.
func (s *Sheet) SetColumnWidth(col int, w float64) error {
	if col < 1 || col > MaxCol {
		return fmt.Errorf("%w: column number %d", ErrInvalidFormat, col)
	}
	if math.IsNaN(w) || w < MinColumnWidth || w > MaxColumnWidth {
		return fmt.Errorf("%w: column width %v not in [%v, %v]", ErrOutOfRange, w, MinColumnWidth, MaxColumnWidth)
	}
	s.colWidths[col] = w
	return nil
}

// SetColumnWidthLetters is SetColumnWidth for an alphabetic column.
func (s *Sheet) SetColumnWidthLetters(col string, w float64) error {
	n, err := ColumnLettersToNumber(col)
	if err != nil {
		return err
	}
	return s.SetColumnWidth(n, w)
}

// SetRowHeight sets the height of a row in points, replacing any earlier
// height.
func (s *Sheet) SetRowHeight(row int, h float64) error {
	if row < 1 || row > MaxRow {
		return fmt.Errorf("%w: row number %d", ErrInvalidFormat, row)
	}
	if math.IsNaN(h) || h < MinRowHeight || h > MaxRowHeight {
		return fmt.Errorf("%w: row height %v not in [%v, %v]", ErrOutOfRange, h, MinRowHeight, MaxRowHeight)
	}
	s.rowHeights[row] = h
	return nil
}
