package xl

import (
	"bytes"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/adnsv/srw/xml"
	"github.com/google/uuid"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"

	"github.com/adnsv/xlbook/internal/clock"
)

const (
	nsMain          = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsMarkupCompat  = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	nsPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"

	ctRels      = "application/vnd.openxmlformats-package.relationships+xml"
	ctWorkbook  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ctWorksheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ctStyles    = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	ctCore      = "application/vnd.openxmlformats-package.core-properties+xml"
	ctExtended  = "application/vnd.openxmlformats-officedocument.extended-properties+xml"

	relOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relCore           = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relExtended       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	relStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relWorksheet      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"

	// the stylesheet's rId is fixed; sheets take rId2, rId3, ...
	stylesRelID = "rId1"

	w3cdtf = "2006-01-02T15:04:05Z"
)

type RelInfo struct {
	Type   string // url to schema type
	Target string // relative path
}

// partWriter generates the parts of one workbook and hands them to a
// Storage in publishing order.
type partWriter struct {
	wb  *Workbook
	out Storage
	now time.Time // used for both created and modified

	GlobalRels          map[string]RelInfo // maps id to absolute path
	WorkbookRels        map[string]RelInfo // maps id to paths relative to xl/
	DefaultContentTypes map[string]string  // maps path extension to content-type
	PartContentTypes    map[string]string  // maps path partname to content-type
}

func newPartWriter(wb *Workbook, out Storage) *partWriter {
	w := &partWriter{
		wb:                  wb,
		out:                 out,
		now:                 clock.Now().UTC(),
		GlobalRels:          map[string]RelInfo{},
		WorkbookRels:        map[string]RelInfo{},
		DefaultContentTypes: map[string]string{},
		PartContentTypes:    map[string]string{},
	}

	w.DefaultContentTypes["xml"] = "application/xml"
	w.DefaultContentTypes["rels"] = ctRels

	w.PartContentTypes["/xl/workbook.xml"] = ctWorkbook
	w.PartContentTypes["/xl/styles.xml"] = ctStyles
	w.PartContentTypes["/docProps/core.xml"] = ctCore
	w.PartContentTypes["/docProps/app.xml"] = ctExtended

	w.GlobalRels["rId1"] = RelInfo{Type: relOfficeDocument, Target: "xl/workbook.xml"}
	w.GlobalRels["rId2"] = RelInfo{Type: relCore, Target: "docProps/core.xml"}
	w.GlobalRels["rId3"] = RelInfo{Type: relExtended, Target: "docProps/app.xml"}

	w.WorkbookRels[stylesRelID] = RelInfo{Type: relStyles, Target: "styles.xml"}

	for _, sh := range wb.Sheets {
		w.PartContentTypes[sh.path] = ctWorksheet
		w.WorkbookRels[sh.rid] = RelInfo{
			Type:   relWorksheet,
			Target: strings.TrimPrefix(sh.path, "/xl/"),
		}
	}
	return w
}

func (w *partWriter) write() error {
	var err error

	err = w.put("/[Content_Types].xml", w.contentTypes())
	if err != nil {
		return err
	}
	err = w.put("/_rels/.rels", w.rels(w.GlobalRels))
	if err != nil {
		return err
	}
	err = w.put("/docProps/app.xml", w.extendedProperties())
	if err != nil {
		return err
	}
	err = w.put("/docProps/core.xml", w.coreProperties())
	if err != nil {
		return err
	}
	err = w.put("/xl/_rels/workbook.xml.rels", w.rels(w.WorkbookRels))
	if err != nil {
		return err
	}
	err = w.put("/xl/styles.xml", w.styles())
	if err != nil {
		return err
	}
	err = w.put("/xl/workbook.xml", w.workbook())
	if err != nil {
		return err
	}

	// the sheets move into the output one by one
	for len(w.wb.Sheets) > 0 {
		sh := w.wb.Sheets[0]
		err = w.put(sh.path, sh.XML())
		if err != nil {
			return err
		}
		w.wb.Sheets[0] = nil
		w.wb.Sheets = w.wb.Sheets[1:]
	}
	w.wb.Sheets = nil
	return nil
}

func (w *partWriter) put(abspath string, blob []byte) error {
	err := w.out.WriteBlob(abspath, blob)
	if err != nil {
		return err
	}
	w.wb.Log.Debug().Str("part", abspath).Int("size", len(blob)).Msg("part written")
	return nil
}

func (w *partWriter) contentTypes() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})

	x.XmlStandaloneDecl()
	x.OTag("Types")
	x.Attr("xmlns", nsContentTypes)
	enumerate(w.DefaultContentTypes, func(ext, ctype string) error {
		x.OTag("+Default").Attr("Extension", ext).Attr("ContentType", ctype).CTag()
		return nil
	})
	enumerate(w.PartContentTypes, func(abspath, ctype string) error {
		x.OTag("+Override").Attr("PartName", abspath).Attr("ContentType", ctype).CTag()
		return nil
	})

	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) rels(rels map[string]RelInfo) []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Relationships")
	x.Attr("xmlns", nsPackageRels)
	enumerate(rels, func(rid string, info RelInfo) error {
		x.OTag("+Relationship").Attr("Id", rid).Attr("Type", info.Type).Attr("Target", info.Target)
		x.CTag()
		return nil
	})
	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) extendedProperties() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Properties")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties")
	x.Attr("xmlns:vt", "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes")

	if w.wb.AppName != "" {
		x.OTag("+Application").String(normalizeNewlines(w.wb.AppName)).CTag()
	}
	x.OTag("+DocSecurity").Write(0).CTag()
	x.OTag("+ScaleCrop").Write("false").CTag()

	n := len(w.wb.Sheets)
	x.OTag("+HeadingPairs")
	x.OTag("+vt:vector").Attr("size", 2).Attr("baseType", "variant")
	x.OTag("+vt:variant")
	x.OTag("vt:lpstr").Write("Worksheets").CTag()
	x.CTag()
	x.OTag("+vt:variant")
	x.OTag("vt:i4").Write(n).CTag()
	x.CTag()
	x.CTag() // vt:vector
	x.CTag() // HeadingPairs

	x.OTag("+TitlesOfParts")
	x.OTag("+vt:vector").Attr("size", n).Attr("baseType", "lpstr")
	for _, sh := range w.wb.Sheets {
		x.OTag("+vt:lpstr").String(sh.name).CTag()
	}
	x.CTag() // vt:vector
	x.CTag() // TitlesOfParts

	x.OTag("+LinksUpToDate").Write("false").CTag()
	x.OTag("+SharedDoc").Write("false").CTag()
	x.OTag("+HyperlinksChanged").Write("false").CTag()

	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) coreProperties() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})

	x.XmlStandaloneDecl()
	x.OTag("cp:coreProperties")
	x.Attr("xmlns:cp", "http://schemas.openxmlformats.org/package/2006/metadata/core-properties")
	x.Attr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	x.Attr("xmlns:dcterms", "http://purl.org/dc/terms/")
	x.Attr("xmlns:dcmitype", "http://purl.org/dc/dcmitype/")
	x.Attr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")

	creator := normalizeNewlines(w.wb.Creator)
	x.OTag("+dc:creator").String(creator).CTag()
	x.OTag("+cp:lastModifiedBy").String(creator).CTag()
	if w.wb.ID != uuid.Nil {
		x.OTag("+dc:identifier").Write(w.wb.ID.URN()).CTag()
	}

	stamp := w.now.Format(w3cdtf)
	x.OTag("+dcterms:created")
	x.Attr("xsi:type", "dcterms:W3CDTF")
	x.Write(stamp)
	x.CTag()
	x.OTag("+dcterms:modified")
	x.Attr("xsi:type", "dcterms:W3CDTF")
	x.Write(stamp)
	x.CTag()

	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) styles() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("styleSheet")
	x.Attr("xmlns", nsMain)
	x.Attr("xmlns:mc", nsMarkupCompat)

	x.OTag("+numFmts").Attr("count", int(lastCustomFormat-firstCustomFormat)+1)
	for f := firstCustomFormat; f <= lastCustomFormat; f++ {
		x.OTag("+numFmt").Attr("numFmtId", int(f)).Attr("formatCode", f.code()).CTag()
	}
	x.CTag()

	x.OTag("+fonts").Attr("count", len(fontTable))
	for i := range fontTable {
		fontTable[i].write(x)
	}
	x.CTag()

	x.OTag("+fills").Attr("count", 2)
	x.OTag("+fill")
	x.OTag("patternFill").Attr("patternType", "none").CTag()
	x.CTag()
	x.OTag("+fill")
	x.OTag("patternFill").Attr("patternType", "gray125").CTag()
	x.CTag()
	x.CTag()

	x.OTag("+borders").Attr("count", 1)
	x.OTag("+border")
	x.OTag("left").CTag()
	x.OTag("right").CTag()
	x.OTag("top").CTag()
	x.OTag("bottom").CTag()
	x.OTag("diagonal").CTag()
	x.CTag()
	x.CTag()

	x.OTag("+cellStyleXfs").Attr("count", 1)
	x.OTag("+xf").Attr("numFmtId", 0).Attr("fontId", 0).Attr("fillId", 0).Attr("borderId", 0).CTag()
	x.CTag()

	// one record per interned style; the record index is the style index
	styles := w.wb.styles.styles
	x.OTag("+cellXfs").Attr("count", len(styles))
	for _, st := range styles {
		x.OTag("+xf")
		x.Attr("numFmtId", int(st.Format))
		x.Attr("fontId", fontID(st.Bold))
		x.Attr("fillId", 0)
		x.Attr("borderId", 0)
		x.Attr("xfId", 0)
		if st.Format != FormatGeneral {
			x.Attr("applyNumberFormat", 1)
		}
		if st.Bold {
			x.Attr("applyFont", 1)
		}
		x.Attr("applyAlignment", 1)
		x.OTag("alignment").Attr("horizontal", st.Horizontal.String()).Attr("vertical", st.Vertical.String())
		if st.Wrap {
			x.Attr("wrapText", 1)
		}
		x.CTag() // alignment
		x.CTag() // xf
	}
	x.CTag()

	x.OTag("+cellStyles").Attr("count", 1)
	x.OTag("+cellStyle").Attr("name", "Normal").Attr("xfId", 0).Attr("builtinId", 0).CTag()
	x.CTag()

	x.OTag("+dxfs").Attr("count", 0).CTag()
	x.OTag("+tableStyles").Attr("count", 0).CTag()

	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) workbook() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("workbook")
	x.Attr("xmlns", nsMain)
	x.Attr("xmlns:r", nsRelationships)
	x.Attr("xmlns:mc", nsMarkupCompat)

	x.OTag("+sheets")
	for _, sheet := range w.wb.Sheets {
		x.OTag("+sheet")
		x.Attr("name", sheet.name)
		x.Attr("sheetId", sheet.id)
		x.Attr("r:id", sheet.rid)
		x.CTag()
	}
	x.CTag()

	// no cached values are stored for formulas
	x.OTag("+calcPr").Attr("fullCalcOnLoad", 1).CTag()

	x.CTag()

	return bb.Bytes()
}

// XML returns the worksheet part of the sheet. It does not modify the sheet.
func (s *Sheet) XML() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("worksheet")
	x.Attr("xmlns", nsMain)
	x.Attr("xmlns:r", nsRelationships)
	x.Attr("xmlns:mc", nsMarkupCompat)

	x.OTag("+sheetViews")
	x.OTag("+sheetView").Attr("workbookViewId", 0).CTag()
	x.CTag()
	x.OTag("+sheetFormatPr").Attr("defaultRowHeight", 17).CTag()

	cols := map[int]struct{}{}
	for n := range s.usedCols {
		cols[n] = struct{}{}
	}
	for n := range s.colWidths {
		cols[n] = struct{}{}
	}
	if len(cols) > 0 {
		x.OTag("+cols")
		enumerate(cols, func(n int, _ struct{}) error {
			x.OTag("+col").Attr("min", n).Attr("max", n)
			if width, ok := s.colWidths[n]; ok {
				x.Attr("width", formatFloat(width)).Attr("customWidth", 1)
			} else {
				x.Attr("width", formatFloat(DefaultColumnWidth)).Attr("bestFit", 1)
			}
			x.CTag()
			return nil
		})
		x.CTag()
	}

	openRow := func(r int) {
		x.OTag("+row").Attr("r", r)
		if h, ok := s.rowHeights[r]; ok {
			x.Attr("ht", formatFloat(h)).Attr("customHeight", 1)
		}
	}

	// rows that only carry a height are written empty, in order
	heights := sortedKeys(s.rowHeights)
	hi := 0
	flushHeights := func(prev, below int) {
		for hi < len(heights) && heights[hi] < below {
			if heights[hi] > prev {
				openRow(heights[hi])
				x.CTag()
			}
			hi++
		}
	}

	x.OTag("+sheetData")
	row := 0
	for _, cell := range s.Cells() {
		if cell.Ref.Row != row {
			if row > 0 {
				x.CTag() // row
			}
			flushHeights(row, cell.Ref.Row)
			row = cell.Ref.Row
			openRow(row)
		}
		writeCell(x, &cell)
	}
	if row > 0 {
		x.CTag() // row
	}
	flushHeights(row, MaxRow+1)
	x.CTag() // sheetData

	if len(s.merges) > 0 {
		x.OTag("+mergeCells").Attr("count", len(s.merges))
		enumerate(s.merges, func(_ uint64, m MergeRegion) error {
			x.OTag("+mergeCell").Attr("ref", m.String()).CTag()
			return nil
		})
		x.CTag()
	}

	x.CTag() // worksheet

	return bb.Bytes()
}

func writeCell(x *xml.Writer, cell *Cell) {
	x.OTag("+c").Attr("r", cell.Ref.String()).Attr("s", cell.StyleIndex)

	switch cell.Type {
	case CellTypeNumber:
		x.OTag("v").Write(formatFloat(cell.Number)).CTag()
	case CellTypeFormula:
		x.OTag("f").String(cell.Text).CTag()
	case CellTypeString:
		x.Attr("t", "inlineStr")
		x.OTag("is")
		x.OTag("t")
		if strings.TrimSpace(cell.Text) != cell.Text {
			x.Attr("xml:space", "preserve")
		}
		x.String(cell.Text)
		x.CTag() // t
		x.CTag() // is
	}
	x.CTag() // c
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[M ~map[K]V, K constraints.Ordered, V any](m M) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

func enumerate[M ~map[K]V, K constraints.Ordered, V any](m M, callback func(k K, v V) error) error {
	for _, k := range sortedKeys(m) {
		err := callback(k, m[k])
		if err != nil {
			return err
		}
	}
	return nil
}
