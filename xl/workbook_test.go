package xl

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/adnsv/xlbook/internal/clock"
)

// memStorage records parts in publishing order.
type memStorage struct {
	names []string
	parts map[string][]byte
	fail  string // part name that fails to write
}

func (m *memStorage) WriteBlob(path string, blob []byte) error {
	if path == m.fail {
		return fmt.Errorf("%w: %s refused", ErrIO, path)
	}
	if m.parts == nil {
		m.parts = map[string][]byte{}
	}
	m.names = append(m.names, path)
	m.parts[path] = append([]byte(nil), blob...)
	return nil
}

// teeStorage records each part and forwards it to a ZipStorage.
type teeStorage struct {
	mem memStorage
	zip *ZipStorage
}

func (t *teeStorage) WriteBlob(path string, blob []byte) error {
	if err := t.mem.WriteBlob(path, blob); err != nil {
		return err
	}
	return t.zip.WriteBlob(path, blob)
}

func TestAddSheet(t *testing.T) {
	wb := NewWorkbook()

	s1, err := wb.AddSheet("Data")
	require.NoError(t, err)
	s2, err := wb.AddSheet("Summary")
	require.NoError(t, err)
	assert.Equal(t, 1, s1.ID())
	assert.Equal(t, 2, s2.ID())
	assert.Equal(t, "Summary", s2.Name())

	_, err = wb.AddSheet("DATA")
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	for _, name := range []string{"", "a:b", "x/y", "'quoted'", "brackets[1]", strings.Repeat("n", 32)} {
		_, err = wb.AddSheet(name)
		assert.ErrorIs(t, err, ErrInvalidArgument, name)
	}
	_, err = wb.AddSheet(strings.Repeat("ö", 31))
	assert.NoError(t, err)

	assert.Len(t, wb.Sheets, 3)
	assert.Same(t, s1, wb.Sheet("data"))
	assert.Nil(t, wb.Sheet("missing"))

	// the returned handle and the workbook see the same sheet
	require.NoError(t, s1.AddNumber(RC(1, 1), 1))
	assert.Equal(t, 1, wb.Sheets[0].Len())
}

func TestAddSheetFoldsPerCharacter(t *testing.T) {
	wb := NewWorkbook()
	_, err := wb.AddSheet("ß")
	require.NoError(t, err)
	_, err = wb.AddSheet("ss")
	require.NoError(t, err)
	_, err = wb.AddSheet("SS")
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.Len(t, wb.Sheets, 2)
}

func TestAddSheetRejectsControlCharacters(t *testing.T) {
	wb := NewWorkbook()
	for _, name := range []string{"bad\x01name", "tab\tname", "two\nlines", "cr\r", "x\uFFFF", "\xff"} {
		_, err := wb.AddSheet(name)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%q", name)
	}
	assert.Empty(t, wb.Sheets)
}

func TestInternStyle(t *testing.T) {
	wb := NewWorkbook()
	i, err := wb.InternStyle(GenericStyle)
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	i, err = wb.InternStyle(CellStyle{Format: Percent(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = wb.InternStyle(CellStyle{Format: 200})
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Len(t, wb.Styles(), 2)
}

func TestPublishPreconditions(t *testing.T) {
	wb := NewWorkbook()
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	assert.ErrorIs(t, wb.Publish(path), ErrPreconditionFailed)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, wb.PublishTo(&memStorage{}), ErrPreconditionFailed)

	_, err = wb.AddSheet("Data")
	require.NoError(t, err)
	assert.ErrorIs(t, wb.Publish(""), ErrInvalidArgument)
	assert.ErrorIs(t, wb.PublishTo(nil), ErrInvalidArgument)
	assert.ErrorIs(t, wb.Publish(filepath.Join(t.TempDir(), "missing", "out.xlsx")), ErrIO)
}

func buildDataWorkbook(t *testing.T) *Workbook {
	t.Helper()
	wb := NewWorkbook()
	wb.Creator = "tester"
	sh, err := wb.AddSheet("Data")
	require.NoError(t, err)
	require.NoError(t, sh.AddNumber(RC(1, 1), 42.0))
	require.NoError(t, sh.AddString(RC(1, 2), "answer"))
	require.NoError(t, sh.AddFormula(RC(1, 3), "A1*2"))
	return wb
}

var partOrder = []string{
	"/[Content_Types].xml",
	"/_rels/.rels",
	"/docProps/app.xml",
	"/docProps/core.xml",
	"/xl/_rels/workbook.xml.rels",
	"/xl/styles.xml",
	"/xl/workbook.xml",
	"/xl/worksheets/sheet1.xml",
}

func TestPublishEndToEnd(t *testing.T) {
	wb := buildDataWorkbook(t)
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, wb.Publish(path))
	assert.Empty(t, wb.Sheets)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, "/"+f.Name)
		assert.Equal(t, zip.Store, f.Method)
		assert.Equal(t, f.CompressedSize64, f.UncompressedSize64)
	}
	assert.Equal(t, partOrder, names)

	rc, err := zr.Open("xl/worksheets/sheet1.xml")
	require.NoError(t, err)
	var ws xmlWorksheet
	require.NoError(t, xml.NewDecoder(rc).Decode(&ws))
	rc.Close()

	require.Len(t, ws.Rows, 1)
	assert.Equal(t, 1, ws.Rows[0].R)
	cells := ws.Rows[0].Cells
	require.Len(t, cells, 3)
	assert.Equal(t, []string{"A1", "B1", "C1"}, []string{cells[0].R, cells[1].R, cells[2].R})
	assert.Equal(t, "42", cells[0].V)
	assert.Equal(t, "inlineStr", cells[1].T)
	assert.Equal(t, "answer", cells[1].IS.T.Text)
	assert.Equal(t, "A1*2", cells[2].F)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Data"}, f.GetSheetList())
	v, err := f.GetCellValue("Data", "A1", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "42", v)
	v, err = f.GetCellValue("Data", "B1")
	require.NoError(t, err)
	assert.Equal(t, "answer", v)
	formula, err := f.GetCellFormula("Data", "C1")
	require.NoError(t, err)
	assert.Equal(t, "A1*2", formula)
}

func TestPublishToZipStorage(t *testing.T) {
	wb := buildDataWorkbook(t)
	sh := wb.Sheets[0]
	require.NoError(t, sh.AddMergedString(RC(3, 1), RC(4, 3), "merged", CellStyle{Horizontal: HAlignCenter, Bold: true}))
	_, err := wb.AddSheet("Second")
	require.NoError(t, err)

	var buf bytes.Buffer
	zs, err := NewZipStorage(&buf)
	require.NoError(t, err)
	tee := &teeStorage{zip: zs}
	require.NoError(t, wb.PublishTo(tee))
	require.NoError(t, zs.Close())

	data := buf.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, len(tee.mem.names))
	for i, f := range zr.File {
		blob := tee.mem.parts[tee.mem.names[i]]
		assert.Equal(t, "/"+f.Name, tee.mem.names[i])
		assert.Equal(t, crc32.ChecksumIEEE(blob), f.CRC32, f.Name)
		assert.Equal(t, uint64(len(blob)), f.UncompressedSize64, f.Name)
	}
	assert.Contains(t, tee.mem.names, "/xl/worksheets/sheet2.xml")

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Data", "Second"}, f.GetSheetList())
	merges, err := f.GetMergeCells("Data")
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A3", merges[0].GetStartAxis())
	assert.Equal(t, "C4", merges[0].GetEndAxis())
	assert.Equal(t, "merged", merges[0].GetCellValue())
}

func TestPublishConsumesSheets(t *testing.T) {
	wb := buildDataWorkbook(t)
	_, err := wb.AddSheet("Other")
	require.NoError(t, err)

	m := &memStorage{fail: "/xl/worksheets/sheet2.xml"}
	err = wb.PublishTo(m)
	assert.ErrorIs(t, err, ErrIO)
	// the first sheet has already moved to the output
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "Other", wb.Sheets[0].Name())
	assert.Equal(t, partOrder, m.names)

	m = &memStorage{}
	wb = buildDataWorkbook(t)
	require.NoError(t, wb.PublishTo(m))
	assert.Empty(t, wb.Sheets)
	assert.ErrorIs(t, wb.PublishTo(m), ErrPreconditionFailed)
}

func TestPublishManifest(t *testing.T) {
	wb := buildDataWorkbook(t)
	_, err := wb.AddSheet("Two")
	require.NoError(t, err)
	m := &memStorage{}
	require.NoError(t, wb.PublishTo(m))

	var types struct {
		Defaults []struct {
			Extension   string `xml:",attr"`
			ContentType string `xml:",attr"`
		} `xml:"Default"`
		Overrides []struct {
			PartName    string `xml:",attr"`
			ContentType string `xml:",attr"`
		} `xml:"Override"`
	}
	require.NoError(t, xml.Unmarshal(m.parts["/[Content_Types].xml"], &types))
	assert.Len(t, types.Defaults, 2)
	overrides := map[string]string{}
	for _, o := range types.Overrides {
		overrides[o.PartName] = o.ContentType
	}
	assert.Len(t, overrides, 6)
	assert.Equal(t, ctWorksheet, overrides["/xl/worksheets/sheet2.xml"])
	assert.Equal(t, ctWorkbook, overrides["/xl/workbook.xml"])

	type rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Type   string `xml:",attr"`
			Target string `xml:",attr"`
		} `xml:"Relationship"`
	}
	var global, book rels
	require.NoError(t, xml.Unmarshal(m.parts["/_rels/.rels"], &global))
	require.NoError(t, xml.Unmarshal(m.parts["/xl/_rels/workbook.xml.rels"], &book))
	assert.Len(t, global.Items, 3)
	require.Len(t, book.Items, 3)
	assert.Equal(t, "styles.xml", book.Items[0].Target)
	assert.Equal(t, "worksheets/sheet1.xml", book.Items[1].Target)
	assert.Equal(t, "rId3", book.Items[2].ID)

	var workbook struct {
		Sheets []struct {
			Name    string `xml:"name,attr"`
			SheetID int    `xml:"sheetId,attr"`
			RID     string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheets>sheet"`
	}
	require.NoError(t, xml.Unmarshal(m.parts["/xl/workbook.xml"], &workbook))
	require.Len(t, workbook.Sheets, 2)
	assert.Equal(t, "Two", workbook.Sheets[1].Name)
	assert.Equal(t, 2, workbook.Sheets[1].SheetID)
	assert.Equal(t, "rId3", workbook.Sheets[1].RID)

	var app struct {
		Application string   `xml:"Application"`
		Titles      []string `xml:"TitlesOfParts>vector>lpstr"`
	}
	require.NoError(t, xml.Unmarshal(m.parts["/docProps/app.xml"], &app))
	assert.Equal(t, "xlbook", app.Application)
	assert.Equal(t, []string{"Data", "Two"}, app.Titles)
}

func TestPublishStyles(t *testing.T) {
	wb := buildDataWorkbook(t)
	sh := wb.Sheets[0]
	require.NoError(t, sh.AddNumber(RC(2, 1), 0.25, CellStyle{Format: Percent(0), Bold: true}))
	require.NoError(t, sh.AddNumber(RC(2, 2), 1e6, CellStyle{Format: Scientific(2), Wrap: true}))
	styles := wb.Styles()

	m := &memStorage{}
	require.NoError(t, wb.PublishTo(m))

	var ss struct {
		NumFmts []struct {
			ID   int    `xml:"numFmtId,attr"`
			Code string `xml:"formatCode,attr"`
		} `xml:"numFmts>numFmt"`
		Fonts []struct {
			Bold *struct{} `xml:"b"`
		} `xml:"fonts>font"`
		Xfs []struct {
			NumFmtID  int `xml:"numFmtId,attr"`
			FontID    int `xml:"fontId,attr"`
			Alignment struct {
				Horizontal string `xml:"horizontal,attr"`
				Wrap       int    `xml:"wrapText,attr"`
			} `xml:"alignment"`
		} `xml:"cellXfs>xf"`
	}
	require.NoError(t, xml.Unmarshal(m.parts["/xl/styles.xml"], &ss))

	assert.Len(t, ss.NumFmts, 3*(MaxDecimalPlaces+1))
	assert.Equal(t, 100, ss.NumFmts[0].ID)
	assert.Equal(t, "0", ss.NumFmts[0].Code)
	assert.Equal(t, "0.0000000000000000%", ss.NumFmts[len(ss.NumFmts)-1].Code)
	require.Len(t, ss.Fonts, 2)
	assert.NotNil(t, ss.Fonts[1].Bold)

	require.Len(t, ss.Xfs, len(styles))
	assert.Equal(t, 0, ss.Xfs[0].NumFmtID)
	assert.Equal(t, 49, ss.Xfs[1].NumFmtID)
	assert.Equal(t, int(Percent(0)), ss.Xfs[2].NumFmtID)
	assert.Equal(t, 1, ss.Xfs[2].FontID)
	assert.Equal(t, "general", ss.Xfs[2].Alignment.Horizontal)
	assert.Equal(t, 1, ss.Xfs[3].Alignment.Wrap)
}

func TestPublishCoreProperties(t *testing.T) {
	defer clock.Set(clock.Fixed(time.Date(2021, time.March, 2, 10, 20, 30, 0, time.UTC)))()

	wb := buildDataWorkbook(t)
	m := &memStorage{}
	require.NoError(t, wb.PublishTo(m))

	var core struct {
		Creator    string `xml:"creator"`
		Identifier string `xml:"identifier"`
		Created    string `xml:"created"`
		Modified   string `xml:"modified"`
	}
	require.NoError(t, xml.Unmarshal(m.parts["/docProps/core.xml"], &core))
	assert.Equal(t, "tester", core.Creator)
	assert.Equal(t, "urn:uuid:"+wb.ID.String(), core.Identifier)
	assert.Equal(t, "2021-03-02T10:20:30Z", core.Created)
	assert.Equal(t, core.Created, core.Modified)
}

func TestPublishDirStorage(t *testing.T) {
	wb := buildDataWorkbook(t)
	dir := t.TempDir()
	require.NoError(t, wb.PublishTo(NewDirStorage(dir)))
	for _, p := range partOrder {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(p, "/"))))
		assert.NoError(t, err, p)
	}
}

func TestPublishConcurrent(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wb := NewWorkbook()
			sh, err := wb.AddSheet(fmt.Sprintf("Sheet %d", i))
			if err != nil {
				errs[i] = err
				return
			}
			for r := 1; r <= 100; r++ {
				if err := sh.AddNumber(RC(r, 1+i), float64(r*i)); err != nil {
					errs[i] = err
					return
				}
			}
			errs[i] = wb.Publish(filepath.Join(dir, fmt.Sprintf("book%d.xlsx", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "book %d", i)
		zr, err := zip.OpenReader(filepath.Join(dir, fmt.Sprintf("book%d.xlsx", i)))
		require.NoError(t, err)
		assert.Len(t, zr.File, len(partOrder))
		zr.Close()
	}
}

func TestPublishLineBreaks(t *testing.T) {
	wb := NewWorkbook()
	sh, err := wb.AddSheet("Text")
	require.NoError(t, err)
	require.NoError(t, sh.AddString(A1("A1"), "a\r\nb"))
	require.NoError(t, sh.AddString(A1("B1"), "x\rnice"))
	require.NoError(t, sh.AddString(A1("C1"), "plain\nline"))

	path := filepath.Join(t.TempDir(), "text.xlsx")
	require.NoError(t, wb.Publish(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	for cell, want := range map[string]string{"A1": "a\nb", "B1": "x\nnice", "C1": "plain\nline"} {
		v, err := f.GetCellValue("Text", cell)
		require.NoError(t, err)
		assert.Equal(t, want, v, cell)
	}
}

func TestPublishRejectsNonXMLMetadata(t *testing.T) {
	wb := buildDataWorkbook(t)
	wb.Creator = "me\x02"
	assert.ErrorIs(t, wb.PublishTo(&memStorage{}), ErrInvalidArgument)
	wb.Creator = "tester"
	wb.AppName = "app\uFFFE"
	assert.ErrorIs(t, wb.PublishTo(&memStorage{}), ErrInvalidArgument)
	// nothing was consumed
	assert.Len(t, wb.Sheets, 1)

	wb.AppName = "xlbook"
	wb.Creator = "line\r\nbreak"
	m := &memStorage{}
	require.NoError(t, wb.PublishTo(m))

	var core struct {
		Creator string `xml:"creator"`
	}
	require.NoError(t, xml.Unmarshal(m.parts["/docProps/core.xml"], &core))
	assert.Equal(t, "line\nbreak", core.Creator)

	path := filepath.Join(t.TempDir(), "rejected.xlsx")
	wb = buildDataWorkbook(t)
	wb.Creator = "\x00"
	assert.ErrorIs(t, wb.Publish(path), ErrInvalidArgument)
}
