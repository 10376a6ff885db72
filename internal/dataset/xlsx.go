package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

var zipMagic = []byte("PK\x03\x04")

// IsXLSX reports whether data starts with a ZIP signature.
func IsXLSX(data []byte) bool { return bytes.HasPrefix(data, zipMagic) }

// ReadXLSX reads one worksheet of an XLSX workbook into a Table. The first
// row is the header. opt.Sheet picks the worksheet by name (case-insensitive);
// empty means the first sheet in workbook order. Numeric cells are stored
// with a '.' decimal point whatever opt.DecimalSeparator says.
func ReadXLSX(data []byte, opt Options) (*Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	workbook, err := readZipEntry(zr, "xl/workbook.xml")
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	rels, _ := readZipEntry(zr, "xl/_rels/workbook.xml.rels")
	sharedXML, _ := readZipEntry(zr, "xl/sharedStrings.xml")

	target, err := sheetPath(parseWorkbook(workbook), parseRelationships(rels), opt.Sheet)
	if err != nil {
		return nil, err
	}
	sheetXML, err := readZipEntry(zr, target)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}

	rr := &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(sheetXML)), shared: parseSharedStrings(sharedXML)}
	header, err := rr.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cellOpt := opt
	cellOpt.DecimalSeparator, cellOpt.ThousandsSeparator = '.', 0
	return buildTable(header, rr.Next, cellOpt)
}

type wbSheet struct {
	Name string
	RID  string
}

func sheetPath(sheets []wbSheet, rels map[string]string, name string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	chosen := sheets[0]
	if name != "" {
		found := false
		for _, s := range sheets {
			if strings.EqualFold(s.Name, name) {
				chosen, found = s, true
				break
			}
		}
		if !found {
			names := make([]string, len(sheets))
			for i, s := range sheets {
				names[i] = s.Name
			}
			return "", fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(names, ", "))
		}
	}
	if rel, ok := rels[chosen.RID]; ok {
		return normalizeRelPath(rel), nil
	}
	return "xl/worksheets/sheet1.xml", nil
}

// normalizeRelPath turns a relationship target into a ZIP entry name.
// Targets are relative to xl/ unless they start with a slash.
func normalizeRelPath(rel string) string {
	if strings.HasPrefix(rel, "/") {
		return strings.TrimPrefix(rel, "/")
	}
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// parseWorkbook lists sheets in workbook order.
func parseWorkbook(data []byte) []wbSheet {
	var sheets []wbSheet
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "id": // r:id
				s.RID = a.Value
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships maps relationship ids to targets.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

// parseSharedStrings concatenates every <t> run of each <si> entry.
func parseSharedStrings(data []byte) []string {
	var out []string
	var buf strings.Builder
	inT := false
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows of a worksheet. Cells are placed by their
// reference, so sparse rows keep their column positions.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

// Next returns the next row, or io.EOF.
func (r *sheetRowReader) Next() ([]string, error) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow, row = true, nil
			case inRow && se.Name.Local == "c":
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				col := len(row)
				if c := colIndexFromRef(ref); c >= 0 {
					col = c
				}
				val, err := r.cellValue(typ)
				if err != nil {
					return nil, err
				}
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, nil
			}
		}
	}
}

// cellValue reads up to the closing </c> and resolves shared strings.
func (r *sheetRowReader) cellValue(typ string) (string, error) {
	var val strings.Builder
	depth := 0
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				depth++
			}
		case xml.CharData:
			if depth > 0 {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				depth--
			case "c":
				if typ == "s" {
					idx, err := strconv.Atoi(strings.TrimSpace(val.String()))
					if err != nil || idx < 0 || idx >= len(r.shared) {
						return "", nil
					}
					return r.shared[idx], nil
				}
				return val.String(), nil
			}
		}
	}
}

// colIndexFromRef converts a cell reference like "C12" to a 0-based column.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}
