package survey

import (
	"sort"

	"github.com/KaramelBytes/surveylens/internal/dataset"
)

// Overview is the population-level summary shown under the results.
type Overview struct {
	Participants int      `json:"participants"`
	Groups       int      `json:"groups"`
	GroupLabels  []string `json:"group_labels"`
	Questions    int      `json:"questions"`
}

// OverviewOf counts participants and distinct non-missing classifier groups.
func OverviewOf(t *dataset.Table, classifier string, questions int) (Overview, error) {
	col, err := t.Column(classifier)
	if err != nil {
		return Overview{}, err
	}
	seen := map[string]dataset.Value{}
	for _, v := range col {
		if !v.IsMissing() {
			seen[v.String()] = v
		}
	}
	labels := make([]string, 0, len(seen))
	for k := range seen {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool { return seen[labels[i]].Less(seen[labels[j]]) })
	return Overview{
		Participants: t.Len(),
		Groups:       len(seen),
		GroupLabels:  labels,
		Questions:    questions,
	}, nil
}
