package web

import (
	"strings"

	"github.com/KaramelBytes/surveylens/internal/report"
	"github.com/KaramelBytes/surveylens/internal/survey"
)

// Spec is a Vega-Lite v5 specification ready for vega-embed.
type Spec map[string]any

const vegaSchema = "https://vega.github.io/schema/vega-lite/v5.json"

var fieldEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`[`, `\[`,
	`]`, `\]`,
	`:`, `\:`,
)

// EscapeField makes a column name safe to use as a Vega-Lite field, where
// dots and brackets otherwise mean nested access.
func EscapeField(name string) string { return fieldEscaper.Replace(name) }

// ScaleChart draws the answer distribution as bins stacked by group, with a
// dashed rule at the respondent's answer.
func ScaleChart(item report.Item, classifier string) Spec {
	st := item.Scale
	values := make([]map[string]any, 0, len(st.Histogram))
	for _, b := range st.Histogram {
		for _, g := range b.ByGroup {
			values = append(values, map[string]any{
				"start":    b.Start,
				"end":      b.End,
				classifier: g.Group,
				"count":    g.Count,
			})
		}
	}
	group := EscapeField(classifier)
	return Spec{
		"$schema": vegaSchema,
		"width":   "container",
		"height":  220,
		"data":    map[string]any{"values": values},
		"layer": []any{
			map[string]any{
				"mark": map[string]any{"type": "bar", "opacity": 0.8},
				"encoding": map[string]any{
					"x":     map[string]any{"field": "start", "type": "quantitative", "bin": map[string]any{"binned": true}, "title": "Answer"},
					"x2":    map[string]any{"field": "end"},
					"y":     map[string]any{"aggregate": "sum", "field": "count", "type": "quantitative", "stack": true, "title": "Participants"},
					"color": map[string]any{"field": group, "type": "nominal", "title": classifier},
				},
			},
			map[string]any{
				"mark": map[string]any{"type": "rule", "color": "red", "strokeDash": []int{5, 5}, "size": 2},
				"encoding": map[string]any{
					"x": map[string]any{"datum": st.Answer, "type": "quantitative"},
				},
			},
		},
	}
}

// CategoryChart draws counts per category stacked by group. Bars of the
// respondent's category are opaque, the rest faded. Only the respondent's
// category carries percentage labels.
func CategoryChart(item report.Item, classifier string) Spec {
	bd := item.Category.Breakdown
	values := make([]map[string]any, 0, len(bd.Cells))
	for _, c := range bd.Cells {
		values = append(values, map[string]any{
			bd.Question:     c.Category,
			classifier:      c.Group,
			"count":         c.Count,
			"percentage":    c.Percentage,
			"is_respondent": c.IsRespondent,
		})
	}
	question := EscapeField(bd.Question)
	group := EscapeField(classifier)
	return Spec{
		"$schema": vegaSchema,
		"width":   "container",
		"height":  240,
		"data":    map[string]any{"values": values},
		"encoding": map[string]any{
			"x": map[string]any{"field": question, "type": "nominal", "title": nil, "sort": categoryOrder(bd), "axis": map[string]any{"labelAngle": 0}},
			"y": map[string]any{"field": "count", "type": "quantitative", "stack": "zero", "title": "Participants"},
		},
		"layer": []any{
			map[string]any{
				"mark": "bar",
				"encoding": map[string]any{
					"color": map[string]any{"field": group, "type": "nominal", "title": classifier},
					"opacity": map[string]any{
						"condition": map[string]any{"test": "datum.is_respondent", "value": 1.0},
						"value":     0.4,
					},
				},
			},
			map[string]any{
				"mark":      map[string]any{"type": "text", "baseline": "top", "dy": 4, "color": "white"},
				"transform": []any{map[string]any{"calculate": "format(datum.percentage, '.0f') + '%'", "as": "label"}},
				"encoding": map[string]any{
					"detail": map[string]any{"field": group, "type": "nominal"},
					"text":   map[string]any{"field": "label"},
					"opacity": map[string]any{
						"condition": map[string]any{"test": "datum.is_respondent", "value": 1.0},
						"value":     0.0,
					},
				},
			},
		},
	}
}

func categoryOrder(bd *survey.CategoryBreakdown) []string {
	out := make([]string, 0, len(bd.Totals))
	for _, t := range bd.Totals {
		out = append(out, t.Category)
	}
	return out
}

// Charts returns one spec per computed item, keyed by question.
func Charts(r *report.Report, classifier string) map[string]Spec {
	out := make(map[string]Spec, len(r.Items))
	for _, it := range r.Items {
		if it.Status != report.StatusOK {
			continue
		}
		switch it.Kind {
		case report.KindScale:
			out[it.Question] = ScaleChart(it, classifier)
		case report.KindCategory:
			out[it.Question] = CategoryChart(it, classifier)
		}
	}
	return out
}
