package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ColumnProfile captures inferred type and statistics per column.
type ColumnProfile struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // numeric|text|missing
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Text top values
	TopValues []CategoryCount `json:"top_values,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

const maxTopValues = 8

// Profile summarizes every column of t. Callers drop identifying columns
// (see Table.Without) before profiling data that will be shown to users.
func Profile(t *Table) []ColumnProfile {
	out := make([]ColumnProfile, 0, len(t.columns))
	for j, name := range t.columns {
		p := ColumnProfile{Name: name, Kind: t.kinds[j].String()}
		seen := map[string]int{}
		// Welford
		var n int
		var mean, m2 float64
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, row := range t.rows {
			v := row[j]
			if v.IsMissing() {
				p.Missing++
				continue
			}
			p.NonNull++
			seen[v.String()]++
			if v.Kind != KindNumber {
				continue
			}
			x := v.Num
			n++
			minV = math.Min(minV, x)
			maxV = math.Max(maxV, x)
			delta := x - mean
			mean += delta / float64(n)
			m2 += delta * (x - mean)
		}
		p.Unique = len(seen)
		switch t.kinds[j] {
		case KindNumber:
			p.Min, p.Max, p.Mean = minV, maxV, mean
			if n > 1 {
				p.Std = math.Sqrt(m2 / float64(n-1))
			}
		case KindText:
			tops := make([]CategoryCount, 0, len(seen))
			for k, c := range seen {
				tops = append(tops, CategoryCount{Value: k, Count: c})
			}
			sort.Slice(tops, func(a, b int) bool {
				if tops[a].Count == tops[b].Count {
					return tops[a].Value < tops[b].Value
				}
				return tops[a].Count > tops[b].Count
			})
			if len(tops) > maxTopValues {
				tops = tops[:maxTopValues]
			}
			p.TopValues = tops
		}
		out = append(out, p)
	}
	return out
}

// ProfileMarkdown renders profiles as a compact schema listing.
func ProfileMarkdown(profiles []ColumnProfile) string {
	var b strings.Builder
	b.WriteString("[SCHEMA]\n")
	for _, c := range profiles {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf(" — min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case "text":
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
