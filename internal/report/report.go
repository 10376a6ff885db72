// Package report assembles the per-respondent results page from the survey
// engines. It decides nothing about presentation beyond the Markdown form
// used by the CLI.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/surveylens/internal/dataset"
	"github.com/KaramelBytes/surveylens/internal/survey"
)

// Layout names the columns that matter and how scale answers are shown.
type Layout struct {
	IdentifierColumn  string
	ClassifierColumn  string
	ScaleQuestions    []string
	CategoryQuestions []string
	// ScaleMax is the top of the answer scale, shown as "x / ScaleMax".
	ScaleMax int
	// HistogramMaxBins bounds the distribution chart; 0 means 10.
	HistogramMaxBins int
}

// QuestionCount is the number of configured questions.
func (l Layout) QuestionCount() int { return len(l.ScaleQuestions) + len(l.CategoryQuestions) }

func (l Layout) resolver() survey.Resolver {
	return survey.Resolver{IdentifierColumn: l.IdentifierColumn, ClassifierColumn: l.ClassifierColumn}
}

// Kind distinguishes scale from category questions.
type Kind string

const (
	KindScale    Kind = "scale"
	KindCategory Kind = "category"
)

// Status summarizes how an item turned out.
type Status string

const (
	StatusOK               Status = "ok"
	StatusMissingAnswer    Status = "missing_answer"
	StatusInsufficientData Status = "insufficient_data"
	StatusUnknownQuestion  Status = "unknown_question"
	StatusError            Status = "error"
)

// Item is one question's section of the report. Exactly one of Scale or
// Category is set when Status is ok.
type Item struct {
	Question string             `json:"question"`
	Kind     Kind               `json:"kind"`
	Status   Status             `json:"status"`
	Message  string             `json:"message,omitempty"`
	Answer   string             `json:"answer,omitempty"`
	Scale    *survey.ScaleStats `json:"scale,omitempty"`
	Category *CategoryResult    `json:"category,omitempty"`
	// Err is the underlying failure for non-ok items.
	Err error `json:"-"`
}

// CategoryResult pairs the per-group breakdown with the same-answer tally.
type CategoryResult struct {
	Breakdown *survey.CategoryBreakdown `json:"breakdown"`
	Tally     survey.Tally              `json:"tally"`
}

// Report is everything shown to one respondent.
type Report struct {
	SnapshotID string          `json:"snapshot_id"`
	LoadedAt   time.Time       `json:"loaded_at"`
	RowIndex   int             `json:"row_index"`
	Group      string          `json:"group"`
	ScaleMax   int             `json:"scale_max"`
	Items      []Item          `json:"items"`
	Overview   survey.Overview `json:"overview"`
}

// Builder runs the engines for a Layout.
type Builder struct {
	Layout Layout
}

// Build resolves key and computes every configured question. Resolver
// errors (empty key, not found, unknown identifier or classifier column)
// are returned as is. Per-question failures are recorded on the item and
// never stop the other questions.
func (b *Builder) Build(t *dataset.Table, key string) (*Report, error) {
	l := b.Layout
	resp, err := l.resolver().Resolve(t, key)
	if err != nil {
		return nil, err
	}
	ov, err := survey.OverviewOf(t, l.ClassifierColumn, l.QuestionCount())
	if err != nil {
		return nil, err
	}
	group := survey.NoGroup
	if !resp.Group.IsMissing() {
		group = resp.Group.String()
	}
	out := &Report{
		SnapshotID: t.ID,
		LoadedAt:   t.LoadedAt,
		RowIndex:   resp.Index,
		Group:      group,
		ScaleMax:   l.ScaleMax,
		Overview:   ov,
	}
	for _, q := range l.ScaleQuestions {
		out.Items = append(out.Items, b.scaleItem(t, resp, q))
	}
	for _, q := range l.CategoryQuestions {
		out.Items = append(out.Items, b.categoryItem(t, resp, q))
	}
	return out, nil
}

func (b *Builder) scaleItem(t *dataset.Table, resp *survey.Respondent, q string) Item {
	it := Item{Question: q, Kind: KindScale}
	if !t.HasColumn(q) {
		return it.fail(&dataset.ColumnError{Column: q})
	}
	ans := resp.Answer(q)
	if ans.IsMissing() {
		return it.fail(&survey.MissingAnswerError{Question: q})
	}
	it.Answer = ans.String()
	if !ans.IsNumber() {
		return it.fail(&survey.InsufficientDataError{Question: q, Reason: "answers are not numeric"})
	}
	st, err := survey.ScaleStatsOf(t, q, b.Layout.ClassifierColumn, ans.Num, b.Layout.HistogramMaxBins)
	if err != nil {
		return it.fail(err)
	}
	it.Status = StatusOK
	it.Scale = st
	it.Message = bandMessage(st.Band)
	return it
}

func (b *Builder) categoryItem(t *dataset.Table, resp *survey.Respondent, q string) Item {
	it := Item{Question: q, Kind: KindCategory}
	if !t.HasColumn(q) {
		return it.fail(&dataset.ColumnError{Column: q})
	}
	ans := resp.Answer(q)
	if ans.IsMissing() {
		return it.fail(&survey.MissingAnswerError{Question: q})
	}
	it.Answer = ans.String()
	bd, err := survey.CategoryBreakdownOf(t, q, b.Layout.ClassifierColumn, ans)
	if err != nil {
		return it.fail(err)
	}
	tally, err := survey.SameAnswerTally(t, q, ans)
	if err != nil {
		return it.fail(err)
	}
	it.Status = StatusOK
	it.Category = &CategoryResult{Breakdown: bd, Tally: tally}
	return it
}

func (it Item) fail(err error) Item {
	it.Err = err
	var ce *dataset.ColumnError
	switch {
	case errors.Is(err, survey.ErrMissingAnswer):
		it.Status = StatusMissingAnswer
		it.Message = "You did not answer this question."
	case errors.Is(err, survey.ErrInsufficientData):
		it.Status = StatusInsufficientData
		it.Message = "Not enough answers to compare with yet."
	case errors.As(err, &ce):
		it.Status = StatusUnknownQuestion
		it.Message = fmt.Sprintf("Question %q is not in the survey data.", ce.Column)
	default:
		it.Status = StatusError
		it.Message = err.Error()
	}
	return it
}

func bandMessage(b survey.Band) string {
	switch b {
	case survey.BandUpper:
		return "You are in the upper quarter."
	case survey.BandLower:
		return "You are in the lower quarter."
	}
	return ""
}
