package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/surveylens/internal/utils"
)

const maxLabel = 60

// Markdown renders the report for terminals and plain-text sharing.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[RESPONDENT]\n")
	b.WriteString(fmt.Sprintf("Group: %s\n", r.Group))
	if r.SnapshotID != "" {
		b.WriteString(fmt.Sprintf("Snapshot: %s (loaded %s)\n", r.SnapshotID, r.LoadedAt.Format("2006-01-02 15:04:05")))
	}

	for _, it := range r.Items {
		b.WriteString(fmt.Sprintf("\n## %s\n", it.Question))
		if it.Status != StatusOK {
			b.WriteString(fmt.Sprintf("! %s\n", it.Message))
			continue
		}
		switch it.Kind {
		case KindScale:
			writeScale(&b, it, r.ScaleMax)
		case KindCategory:
			writeCategory(&b, it)
		}
	}

	b.WriteString("\n[GLOBAL STATISTICS]\n")
	b.WriteString(fmt.Sprintf("Participants: %d\n", r.Overview.Participants))
	b.WriteString(fmt.Sprintf("Groups: %d", r.Overview.Groups))
	if len(r.Overview.GroupLabels) > 0 {
		b.WriteString(fmt.Sprintf(" (%s)", strings.Join(r.Overview.GroupLabels, ", ")))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Questions: %d\n", r.Overview.Questions))
	return b.String()
}

func writeScale(b *strings.Builder, it Item, scaleMax int) {
	st := it.Scale
	if scaleMax > 0 {
		b.WriteString(fmt.Sprintf("Your answer: %s/%d\n", it.Answer, scaleMax))
	} else {
		b.WriteString(fmt.Sprintf("Your answer: %s\n", it.Answer))
	}
	b.WriteString(fmt.Sprintf("Percentile: %.0f (%d of %d answers at or below yours)\n", st.Percentile, st.AtOrBelow, st.Responses))
	if it.Message != "" {
		b.WriteString(it.Message + "\n")
	}
	for _, bin := range st.Histogram {
		if bin.Count == 0 {
			continue
		}
		parts := make([]string, 0, len(bin.ByGroup))
		for _, g := range bin.ByGroup {
			parts = append(parts, fmt.Sprintf("%s %d", g.Group, g.Count))
		}
		b.WriteString(fmt.Sprintf("- [%g, %g): %d (%s)\n", bin.Start, bin.End, bin.Count, strings.Join(parts, ", ")))
	}
}

func writeCategory(b *strings.Builder, it Item) {
	res := it.Category
	b.WriteString(fmt.Sprintf("Your answer: %s\n", it.Answer))
	for _, total := range res.Breakdown.Totals {
		marker := " "
		cells := res.Breakdown.ForCategory(total.Category)
		if len(cells) > 0 && cells[0].IsRespondent {
			marker = "*"
		}
		parts := make([]string, 0, len(cells))
		for _, c := range cells {
			parts = append(parts, fmt.Sprintf("%s %.1f%%", c.Group, c.Percentage))
		}
		b.WriteString(fmt.Sprintf("%s %s (n=%d): %s\n", marker, utils.Truncate(total.Category, maxLabel), total.Count, strings.Join(parts, ", ")))
	}
	t := res.Tally
	b.WriteString(fmt.Sprintf("%d people (%.0f%%) gave the same answer\n", t.Same, t.Percentage))
}
