// Package survey computes the per-respondent statistics shown on the
// dashboard: who the respondent is, where their scale answers rank, and how
// their category answers compare across groups. Every function here is pure
// over an immutable dataset.Table.
package survey

import (
	"strings"

	"github.com/KaramelBytes/surveylens/internal/dataset"
)

// Resolver finds a respondent by secret code.
type Resolver struct {
	IdentifierColumn string
	ClassifierColumn string
}

// Respondent is the matched row plus its group label.
type Respondent struct {
	Index int
	Row   dataset.Row
	Group dataset.Value
}

// Answer returns the respondent's value for a question column.
func (r *Respondent) Answer(question string) dataset.Value { return r.Row.Get(question) }

// Resolve returns the first row whose identifier matches key. Text identifiers
// match case-insensitively after trimming surrounding whitespace on both
// sides; numeric identifier columns require the cell text to equal key exactly.
func (res Resolver) Resolve(t *dataset.Table, key string) (*Respondent, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	ids, err := t.Column(res.IdentifierColumn)
	if err != nil {
		return nil, err
	}
	if !t.HasColumn(res.ClassifierColumn) {
		return nil, &dataset.ColumnError{Column: res.ClassifierColumn}
	}
	kind, _ := t.ColumnKind(res.IdentifierColumn)
	match := exactMatch(key)
	if kind == dataset.KindText {
		match = normalizedMatch(key)
	}
	for i, v := range ids {
		if v.IsMissing() || !match(v) {
			continue
		}
		row := t.Row(i)
		return &Respondent{Index: i, Row: row, Group: row.Get(res.ClassifierColumn)}, nil
	}
	return nil, &NotFoundError{Key: key}
}

func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normalizedMatch(key string) func(dataset.Value) bool {
	want := normalizeKey(key)
	return func(v dataset.Value) bool { return normalizeKey(v.Raw) == want }
}

func exactMatch(key string) func(dataset.Value) bool {
	return func(v dataset.Value) bool { return v.Raw == key }
}
