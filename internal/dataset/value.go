package dataset

import (
	"strconv"
	"strings"
)

// Kind is the type of a single cell or of a whole column.
type Kind int

const (
	KindMissing Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "numeric"
	default:
		return "missing"
	}
}

// Value is one cell of a response table.
type Value struct {
	Kind Kind
	// Raw is the cell text exactly as read from the source.
	Raw string
	// Num is set when Kind == KindNumber.
	Num float64
}

// Missing returns the missing-value marker.
func Missing() Value { return Value{} }

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Raw: s} }

// Number returns a numeric value whose raw form is the shortest decimal representation of f.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Raw: strconv.FormatFloat(f, 'f', -1, 64), Num: f}
}

func (v Value) IsMissing() bool { return v.Kind == KindMissing }
func (v Value) IsNumber() bool  { return v.Kind == KindNumber }

// String renders the value for display. Missing values render as "".
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Raw
	default:
		return ""
	}
}

// Equal reports whether two values are the same answer. Numbers compare by
// value, text compares exactly, and a missing value equals nothing.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Kind == KindMissing {
		return false
	}
	if v.Kind == KindNumber {
		return v.Num == o.Num
	}
	return v.Raw == o.Raw
}

// Less orders two non-missing values: numbers before text, numbers by value, text lexically.
func (v Value) Less(o Value) bool {
	if v.Kind != o.Kind {
		return v.Kind > o.Kind
	}
	if v.Kind == KindNumber {
		return v.Num < o.Num
	}
	return v.Raw < o.Raw
}

// naTokens mirrors the markers spreadsheet exports commonly use for "no answer".
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isNA(raw string) bool {
	_, ok := naTokens[strings.TrimSpace(raw)]
	return ok
}
