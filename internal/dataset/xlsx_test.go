package dataset

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWorkbook = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Notes" sheetId="1" r:id="rId1"/><sheet name="Réponses" sheetId="2" r:id="rId2"/></sheets>
</workbook>`
	testRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="worksheet" Target="/xl/worksheets/sheet2.xml"/>
</Relationships>`
	testShared = `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<si><t>code</t></si><si><t>group</t></si><si><t>sleep</t></si><si><r><t>mo</t></r><r><t>on</t></r></si><si><t>teen</t></si>
</sst>`
	testNotesSheet = `<worksheet><sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>nothing here</t></is></c></row></sheetData></worksheet>`
	testAnswers    = `<worksheet><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="s"><v>2</v></c></row>
<row r="2"><c r="A2" t="s"><v>3</v></c><c r="B2" t="s"><v>4</v></c><c r="C2"><v>7.5</v></c></row>
<row r="3"><c r="A3" t="inlineStr"><is><t>star</t></is></c><c r="C3"><v>4</v></c></row>
<row r="4"></row>
</sheetData></worksheet>`
)

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"xl/workbook.xml":            testWorkbook,
		"xl/_rels/workbook.xml.rels": testRels,
		"xl/sharedStrings.xml":       testShared,
		"xl/worksheets/sheet1.xml":   testNotesSheet,
		"xl/worksheets/sheet2.xml":   testAnswers,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := buildXLSX(t)

	t.Run("named sheet", func(t *testing.T) {
		require.True(t, IsXLSX(data))
		opt := DefaultOptions()
		opt.Sheet = "réponses"
		opt.DecimalSeparator = ','

		tbl, err := Read(data, opt)
		require.NoError(t, err)
		assert.Equal(t, []string{"code", "group", "sleep"}, tbl.Columns())
		require.Equal(t, 2, tbl.Len(), "empty row should be skipped")

		moon := tbl.Row(0)
		assert.Equal(t, "moon", moon.Get("code").String(), "rich text runs are joined")
		sleep := moon.Get("sleep")
		assert.True(t, sleep.IsNumber())
		assert.Equal(t, 7.5, sleep.Num, "workbook numbers ignore the CSV decimal separator")
		assert.True(t, tbl.Row(1).Get("group").IsMissing(), "skipped cell is missing")
	})

	t.Run("first sheet by default", func(t *testing.T) {
		tbl, err := ReadXLSX(data, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"nothing here"}, tbl.Columns())
		assert.True(t, tbl.IsEmpty())
	})

	t.Run("unknown sheet lists the available ones", func(t *testing.T) {
		opt := DefaultOptions()
		opt.Sheet = "Missing"
		_, err := ReadXLSX(data, opt)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Notes, Réponses")
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := ReadXLSX([]byte("PK\x03\x04garbage"), DefaultOptions())
		assert.Error(t, err)
	})
}

func TestReadFallsBackToCSV(t *testing.T) {
	tbl, err := Read([]byte("a,b\n1,x\n"), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.True(t, tbl.Row(0).Get("a").IsNumber())
}

func TestColIndexFromRef(t *testing.T) {
	cases := map[string]int{"A1": 0, "C12": 2, "Z3": 25, "AA10": 26, "ab2": 27, "": -1}
	for ref, want := range cases {
		assert.Equal(t, want, colIndexFromRef(ref), "ref %q", ref)
	}
}
