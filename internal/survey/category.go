package survey

import (
	"math"
	"sort"

	"github.com/KaramelBytes/surveylens/internal/dataset"
)

// CategoryCell is one (category, group) pair of a breakdown.
type CategoryCell struct {
	Category string `json:"category"`
	Group    string `json:"group"`
	Count    int    `json:"count"`
	// Percentage of the category's total, rounded to one decimal (half to even).
	Percentage   float64 `json:"percentage"`
	IsRespondent bool    `json:"is_respondent"`
}

// CategoryBreakdown counts answers to a category question per classifier group.
type CategoryBreakdown struct {
	Question   string         `json:"question"`
	Classifier string         `json:"classifier"`
	Cells      []CategoryCell `json:"cells"`
	// Totals holds each category's row count across groups, in Cells order.
	Totals []CategoryCount `json:"totals"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ForCategory returns the cells of one category in group order.
func (b *CategoryBreakdown) ForCategory(category string) []CategoryCell {
	var out []CategoryCell
	for _, c := range b.Cells {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

// CategoryBreakdownOf groups rows by (question value, classifier value),
// skipping rows where either is missing, and expresses every pair as a share
// of its category. Cells whose category equals respondentValue are flagged.
func CategoryBreakdownOf(t *dataset.Table, question, classifier string, respondentValue dataset.Value) (*CategoryBreakdown, error) {
	answers, err := t.Column(question)
	if err != nil {
		return nil, err
	}
	groups, err := t.Column(classifier)
	if err != nil {
		return nil, err
	}

	type pairKey struct{ cat, group string }
	type catAcc struct {
		value dataset.Value
		total int
	}
	counts := map[pairKey]int{}
	cats := map[string]*catAcc{}
	groupValues := map[string]dataset.Value{}
	for i, a := range answers {
		g := groups[i]
		if a.IsMissing() || g.IsMissing() {
			continue
		}
		k := pairKey{a.String(), g.String()}
		counts[k]++
		ca := cats[k.cat]
		if ca == nil {
			ca = &catAcc{value: a}
			cats[k.cat] = ca
		}
		ca.total++
		groupValues[k.group] = g
	}

	out := &CategoryBreakdown{Question: question, Classifier: classifier}
	for k, n := range counts {
		ca := cats[k.cat]
		out.Cells = append(out.Cells, CategoryCell{
			Category:     k.cat,
			Group:        k.group,
			Count:        n,
			Percentage:   round1(float64(n) / float64(ca.total) * 100),
			IsRespondent: ca.value.Equal(respondentValue),
		})
	}
	sort.Slice(out.Cells, func(i, j int) bool {
		a, b := out.Cells[i], out.Cells[j]
		if a.Category != b.Category {
			return cats[a.Category].value.Less(cats[b.Category].value)
		}
		return groupValues[a.Group].Less(groupValues[b.Group])
	})
	for _, c := range out.Cells {
		if n := len(out.Totals); n > 0 && out.Totals[n-1].Category == c.Category {
			continue
		}
		out.Totals = append(out.Totals, CategoryCount{Category: c.Category, Count: cats[c.Category].total})
	}
	return out, nil
}

// round1 rounds to one decimal place, ties to even.
func round1(x float64) float64 { return math.RoundToEven(x*10) / 10 }

// Tally is how many respondents gave exactly the same answer.
type Tally struct {
	Question string `json:"question"`
	Same     int    `json:"same"`
	Answered int    `json:"answered"`
	// Percentage of all non-missing answers; 0 when nobody answered.
	Percentage float64 `json:"percentage"`
}

// SameAnswerTally counts rows whose answer to question equals value, across
// the whole table regardless of group.
func SameAnswerTally(t *dataset.Table, question string, value dataset.Value) (Tally, error) {
	col, err := t.Column(question)
	if err != nil {
		return Tally{}, err
	}
	out := Tally{Question: question}
	for _, v := range col {
		if v.IsMissing() {
			continue
		}
		out.Answered++
		if v.Equal(value) {
			out.Same++
		}
	}
	if out.Answered > 0 {
		out.Percentage = float64(out.Same) / float64(out.Answered) * 100
	}
	return out, nil
}
