package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/KaramelBytes/surveylens/internal/dataset"
	"github.com/KaramelBytes/surveylens/internal/loader"
	"github.com/KaramelBytes/surveylens/internal/report"
	"github.com/KaramelBytes/surveylens/internal/survey"
	"go.uber.org/zap"
)

const loadFailureMessage = "The survey data could not be loaded. Please try again in a moment."

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// lookupStatus maps lookup errors to HTTP statuses and user-facing messages.
func lookupStatus(err error) (int, string) {
	var ce *dataset.ColumnError
	switch {
	case errors.Is(err, loader.ErrLoadFailure):
		return http.StatusServiceUnavailable, loadFailureMessage
	case errors.Is(err, survey.ErrEmptyKey):
		return http.StatusBadRequest, "Enter your secret code to see your results."
	case errors.Is(err, survey.ErrNotFound):
		return http.StatusNotFound, "Code not found. Check the spelling and try again."
	case errors.As(err, &ce):
		return http.StatusInternalServerError, "The survey data does not have the expected columns."
	default:
		return http.StatusInternalServerError, "Something went wrong."
	}
}

type lookupRequest struct {
	Code string `json:"code"`
}

// LookupResponse is the body of a successful POST /api/lookup.
type LookupResponse struct {
	Report *report.Report  `json:"report"`
	Charts map[string]Spec `json:"charts"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rep, err := s.svc.Lookup(r.Context(), req.Code)
	if err != nil {
		status, msg := lookupStatus(err)
		if status >= 500 {
			s.log.Warn("lookup failed", zap.Int("status", status), zap.Error(err))
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, LookupResponse{
		Report: rep,
		Charts: Charts(rep, s.svc.Layout().ClassifierColumn),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context())
	if err != nil {
		status, msg := lookupStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// RawData is the anonymized table returned by GET /api/data.
type RawData struct {
	SnapshotID string     `json:"snapshot_id"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if !s.opt.RawViewEnabled {
		writeError(w, http.StatusNotFound, "raw data view is disabled")
		return
	}
	t, err := s.svc.Anonymized(r.Context())
	if err != nil {
		status, msg := lookupStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, RawData{SnapshotID: t.ID, Columns: t.Columns(), Rows: t.Records()})
}
