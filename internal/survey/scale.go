package survey

import (
	"math"
	"sort"

	"github.com/KaramelBytes/surveylens/internal/dataset"
)

// Band places a percentile in the population.
type Band string

const (
	BandLower  Band = "lower-quarter"
	BandMiddle Band = "middle"
	BandUpper  Band = "upper-quarter"
)

// BandOf returns the quartile band of a percentile: above 75 is the upper
// quarter, below 25 the lower quarter.
func BandOf(percentile float64) Band {
	switch {
	case percentile > 75:
		return BandUpper
	case percentile < 25:
		return BandLower
	default:
		return BandMiddle
	}
}

// ScaleStats is everything the dashboard shows for one scale question.
type ScaleStats struct {
	Question   string  `json:"question"`
	Answer     float64 `json:"answer"`
	Percentile float64 `json:"percentile"`
	AtOrBelow  int     `json:"at_or_below"`
	Responses  int     `json:"responses"`
	Band       Band    `json:"band"`
	Histogram  []Bin   `json:"histogram"`
}

// Bin is one histogram bucket [Start, End). The last bin also holds End.
type Bin struct {
	Start   float64      `json:"start"`
	End     float64      `json:"end"`
	Count   int          `json:"count"`
	ByGroup []GroupCount `json:"by_group"`
}

type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

// NoGroup labels answers whose respondent has no classifier value.
const NoGroup = "(none)"

// ScalePercentile returns the inclusive percentile rank of value among the
// non-missing answers to question: the share of answers <= value, times 100.
func ScalePercentile(t *dataset.Table, question string, value float64) (float64, error) {
	answers, err := numericAnswers(t, question)
	if err != nil {
		return 0, err
	}
	atOrBelow := countAtOrBelow(answers, value)
	return float64(atOrBelow) / float64(len(answers)) * 100, nil
}

// ScaleStatsOf computes the percentile, quartile band and a per-group
// histogram with at most maxBins buckets.
func ScaleStatsOf(t *dataset.Table, question, classifier string, value float64, maxBins int) (*ScaleStats, error) {
	answers, err := numericAnswers(t, question)
	if err != nil {
		return nil, err
	}
	groups, err := t.Column(classifier)
	if err != nil {
		return nil, err
	}
	atOrBelow := countAtOrBelow(answers, value)
	pct := float64(atOrBelow) / float64(len(answers)) * 100
	return &ScaleStats{
		Question:   question,
		Answer:     value,
		Percentile: pct,
		AtOrBelow:  atOrBelow,
		Responses:  len(answers),
		Band:       BandOf(pct),
		Histogram:  histogram(t, question, groups, maxBins),
	}, nil
}

func numericAnswers(t *dataset.Table, question string) ([]float64, error) {
	col, err := t.Column(question)
	if err != nil {
		return nil, err
	}
	if kind, _ := t.ColumnKind(question); kind == dataset.KindText {
		return nil, &InsufficientDataError{Question: question, Reason: "answers are not numeric"}
	}
	answers := make([]float64, 0, len(col))
	for _, v := range col {
		if v.IsNumber() {
			answers = append(answers, v.Num)
		}
	}
	if len(answers) == 0 {
		return nil, &InsufficientDataError{Question: question, Reason: "no answers"}
	}
	return answers, nil
}

func countAtOrBelow(answers []float64, value float64) int {
	n := 0
	for _, a := range answers {
		if a <= value {
			n++
		}
	}
	return n
}

func histogram(t *dataset.Table, question string, groups []dataset.Value, maxBins int) []Bin {
	col, _ := t.Column(question)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range col {
		if v.IsNumber() {
			lo = math.Min(lo, v.Num)
			hi = math.Max(hi, v.Num)
		}
	}
	start, step, n := niceBins(lo, hi, maxBins)
	bins := make([]Bin, n)
	perGroup := make([]map[string]int, n)
	for i := range bins {
		bins[i].Start = start + float64(i)*step
		bins[i].End = start + float64(i+1)*step
		perGroup[i] = map[string]int{}
	}
	for i, v := range col {
		if !v.IsNumber() {
			continue
		}
		k := int(math.Floor((v.Num - start) / step))
		k = max(0, min(k, n-1))
		bins[k].Count++
		g := NoGroup
		if !groups[i].IsMissing() {
			g = groups[i].String()
		}
		perGroup[k][g]++
	}
	for i := range bins {
		bins[i].ByGroup = sortedGroupCounts(perGroup[i])
	}
	return bins
}

// niceBins picks a step of 1, 2 or 5 times a power of ten so that [lo, hi]
// is covered by at most maxBins buckets aligned on multiples of the step.
func niceBins(lo, hi float64, maxBins int) (start, step float64, n int) {
	if maxBins <= 0 {
		maxBins = 10
	}
	span := hi - lo
	if span <= 0 {
		return lo, 1, 1
	}
	raw := span / float64(maxBins)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		step = m * mag
		if step >= raw {
			break
		}
	}
	start = math.Floor(lo/step) * step
	stop := math.Ceil(hi/step) * step
	n = int(math.Round((stop - start) / step))
	for n > maxBins {
		// alignment can add one bucket; widen the step instead
		step *= 2
		start = math.Floor(lo/step) * step
		stop = math.Ceil(hi/step) * step
		n = int(math.Round((stop - start) / step))
	}
	return start, step, max(n, 1)
}

func sortedGroupCounts(m map[string]int) []GroupCount {
	out := make([]GroupCount, 0, len(m))
	for g, c := range m {
		out = append(out, GroupCount{Group: g, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}
