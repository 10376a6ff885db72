package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/KaramelBytes/surveylens/internal/report"
	"github.com/KaramelBytes/surveylens/internal/survey"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.0f", f) },
}).ParseFS(templateFS, "templates/index.html"))

type pageState string

const (
	statePrompt    pageState = "prompt"
	stateNotFound  pageState = "not_found"
	stateFound     pageState = "found"
	stateLoadError pageState = "load_error"
	stateError     pageState = "error"
)

type section struct {
	Index int
	report.Item
}

type rawView struct {
	Columns []string
	Rows    [][]string
}

type pageData struct {
	Title      string
	Code       string
	State      pageState
	Message    string
	Report     *report.Report
	ScaleMax   int
	Scale      []section
	Category   []section
	Raw        *rawView
	RawEnabled bool
	ShowRaw    bool
	Charts     template.JS
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")
	showRaw := r.FormValue("raw") == "1"
	data := pageData{
		Title:      s.opt.Title,
		Code:       code,
		State:      statePrompt,
		RawEnabled: s.opt.RawViewEnabled,
		ShowRaw:    showRaw && s.opt.RawViewEnabled,
		Charts:     template.JS("[]"),
	}
	status := http.StatusOK

	// the dataset must load before anything else is shown
	if _, err := s.svc.Table(r.Context()); err != nil {
		data.State, data.Message = stateLoadError, loadFailureMessage
		s.render(w, http.StatusServiceUnavailable, data)
		return
	}

	rep, err := s.svc.Lookup(r.Context(), code)
	switch {
	case err == nil:
		data.State = stateFound
		data.Report = rep
		data.ScaleMax = rep.ScaleMax
		s.fillSections(&data, rep)
	case errors.Is(err, survey.ErrEmptyKey):
		data.State = statePrompt
	case errors.Is(err, survey.ErrNotFound):
		data.State = stateNotFound
		data.Message = fmt.Sprintf("Code not found: %q. Check the spelling and try again.", code)
	default:
		status, data.Message = lookupStatus(err)
		data.State = stateError
		if status == http.StatusServiceUnavailable {
			data.State = stateLoadError
		}
	}

	if data.State == stateFound && data.ShowRaw {
		if t, err := s.svc.Anonymized(r.Context()); err == nil {
			data.Raw = &rawView{Columns: t.Columns(), Rows: t.Records()}
		}
	}
	s.render(w, status, data)
}

func (s *Server) fillSections(data *pageData, rep *report.Report) {
	charts := make([]Spec, len(rep.Items))
	classifier := s.svc.Layout().ClassifierColumn
	for i, it := range rep.Items {
		sec := section{Index: i, Item: it}
		switch it.Kind {
		case report.KindScale:
			if it.Status == report.StatusOK {
				charts[i] = ScaleChart(it, classifier)
			}
			data.Scale = append(data.Scale, sec)
		case report.KindCategory:
			if it.Status == report.StatusOK {
				charts[i] = CategoryChart(it, classifier)
			}
			data.Category = append(data.Category, sec)
		}
	}
	b, err := json.Marshal(charts)
	if err != nil {
		s.log.Error("encode charts", zap.Error(err))
		return
	}
	// json.Marshal escapes <, > and & so the payload cannot close the script element
	data.Charts = template.JS(b)
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf strings.Builder
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.log.Error("render page", zap.Error(err))
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}
