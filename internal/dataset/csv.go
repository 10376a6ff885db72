package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Options controls how CSV text is turned into a Table.
type Options struct {
	// Delimiter for CSV. If 0, ',' is used.
	Delimiter rune
	// DecimalSeparator used by numeric cells. If 0, '.' is used.
	DecimalSeparator rune
	// ThousandsSeparator is stripped from numeric cells when set.
	ThousandsSeparator rune
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Sheet selects the worksheet of an XLSX workbook by name; empty means the first.
	Sheet string
}

// DefaultOptions returns the settings used for published spreadsheet exports.
func DefaultOptions() Options {
	return Options{Delimiter: ',', DecimalSeparator: '.'}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read parses an export in either format: XLSX workbooks are recognized by
// their ZIP signature, anything else is read as CSV.
func Read(data []byte, opt Options) (*Table, error) {
	if IsXLSX(data) {
		return ReadXLSX(data, opt)
	}
	return ReadCSV(bytes.NewReader(data), opt)
}

// ReadCSV parses CSV with a header row into a Table.
func ReadCSV(r io.Reader, opt Options) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = ','
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	return buildTable(header, cr.Read, opt)
}

// buildTable turns a header and a record iterator into a Table. next returns
// io.EOF after the last record.
func buildTable(header []string, next func() ([]string, error), opt Options) (*Table, error) {
	columns := uniqueHeader(header)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	var rows [][]Value
	for line := 1; ; line++ {
		rec, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if len(rows) >= maxRows {
			break
		}
		if blankRecord(rec) {
			continue
		}
		row := make([]Value, len(columns))
		for j := 0; j < len(columns) && j < len(rec); j++ {
			row[j] = parseCell(rec[j], opt)
		}
		rows = append(rows, row)
	}
	return NewTable(columns, rows), nil
}

// uniqueHeader names blank headers "Unnamed: i" and suffixes repeats with ".1", ".2", ...
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for taken[name] {
			repeats[base]++
			name = fmt.Sprintf("%s.%d", base, repeats[base])
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseCell(raw string, opt Options) Value {
	if isNA(raw) {
		return Missing()
	}
	if f, ok := parseNumeric(raw, opt); ok {
		return Value{Kind: KindNumber, Raw: raw, Num: f}
	}
	return Text(raw)
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	if dec == 0 {
		dec = '.'
	}
	if thou := opt.ThousandsSeparator; thou != 0 && thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		if strings.Contains(raw, ".") {
			return 0, false
		}
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
