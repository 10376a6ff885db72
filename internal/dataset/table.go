package dataset

import (
	"fmt"
	"time"
)

// Table is an immutable, ordered collection of survey responses. Columns are
// whatever the source header row declares.
type Table struct {
	// ID identifies the load that produced this snapshot.
	ID       string
	LoadedAt time.Time

	columns []string
	kinds   []Kind
	rows    [][]Value
	index   map[string]int
}

// ColumnError reports a column that the table does not have.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string { return fmt.Sprintf("unknown column %q", e.Column) }

// NewTable builds a table from a header and rows. Rows shorter than the header
// are padded with missing values and longer rows are truncated. Column kinds
// are inferred: a column is numeric when every non-missing cell is a number.
func NewTable(columns []string, rows [][]Value) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		kinds:   make([]Kind, len(columns)),
		rows:    make([][]Value, len(rows)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	for i, r := range rows {
		row := make([]Value, len(columns))
		copy(row, r)
		t.rows[i] = row
	}
	for j := range t.columns {
		t.kinds[j] = t.inferKind(j)
		if t.kinds[j] != KindText {
			continue
		}
		// mixed columns are text throughout
		for _, row := range t.rows {
			if row[j].Kind == KindNumber {
				row[j] = Text(row[j].Raw)
			}
		}
	}
	return t
}

// Empty returns a table with no columns and no rows.
func Empty() *Table { return NewTable(nil, nil) }

func (t *Table) inferKind(j int) Kind {
	kind := KindMissing
	for _, row := range t.rows {
		switch row[j].Kind {
		case KindText:
			return KindText
		case KindNumber:
			kind = KindNumber
		}
	}
	return kind
}

// IsEmpty reports whether the table carries no rows.
func (t *Table) IsEmpty() bool { return t == nil || len(t.rows) == 0 }

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Columns returns a copy of the column names in source order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnKind returns the inferred kind of a column.
func (t *Table) ColumnKind(name string) (Kind, error) {
	j, ok := t.index[name]
	if !ok {
		return KindMissing, &ColumnError{Column: name}
	}
	return t.kinds[j], nil
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) ([]Value, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, nil
}

// Row returns a read-only accessor for row i.
func (t *Table) Row(i int) Row { return Row{table: t, index: i} }

// Without returns a copy of t with the named columns removed. Unknown names
// are ignored.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []int
	var cols []string
	for j, c := range t.columns {
		if drop[c] {
			continue
		}
		keep = append(keep, j)
		cols = append(cols, c)
	}
	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, len(keep))
		for k, j := range keep {
			r[k] = row[j]
		}
		rows[i] = r
	}
	out := NewTable(cols, rows)
	out.ID = t.ID
	out.LoadedAt = t.LoadedAt
	return out
}

// Records returns every row as display strings, missing cells as "".
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = v.String()
		}
		out[i] = rec
	}
	return out
}

// Row is a single response.
type Row struct {
	table *Table
	index int
}

// Index is the row's position in its table.
func (r Row) Index() int { return r.index }

// Get returns the value of the named column, or missing when the column does not exist.
func (r Row) Get(column string) Value {
	j, ok := r.table.index[column]
	if !ok {
		return Missing()
	}
	return r.table.rows[r.index][j]
}
