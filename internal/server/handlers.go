package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tt-analysis/internal/analysis"
	"tt-analysis/internal/domain"
	"tt-analysis/internal/reporting"
	"tt-analysis/internal/storage"
	"tt-analysis/internal/verification"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req AnalyzeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	var rows []RowJSON
	result, err := s.analyze(r.Context(), "api", &req, func(o analysis.RowOutcome) {
		rows = append(rows, newRowJSON(o))
	})
	if err != nil {
		status, resp := errorResponse(err)
		if status == http.StatusInternalServerError {
			s.logger.Printf("analyze: %v", err)
		}
		s.writeJSON(w, status, resp)
		return
	}

	s.writeJSON(w, http.StatusOK, AnalyzeResponse{
		RunID:  result.RunID,
		Solved: len(result.Results),
		Failed: len(result.Failures),
		Rows:   rows,
	})
}

// handleGetRun serves a stored run from the first configured store.
// ?format=csv or ?format=md select the file renderings; JSON is the default.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if len(s.stores) == 0 {
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no result store configured"})
		return
	}

	runID := r.PathValue("id")
	report, err := reporting.NewGenerator(s.stores[0].Store).WithClock(s.now).Generate(r.Context(), runID, s.stores[0].Name)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("run %s not found", runID)})
		return
	}
	if err != nil {
		s.logger.Printf("load run %s: %v", runID, err)
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load run"})
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		body, err := reporting.RenderCSV(report)
		if err != nil {
			s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(body))
	case "md":
		w.Header().Set("Content-Type", "text/markdown")
		w.Write([]byte(reporting.RenderMarkdown(report)))
	case "", "json":
		resp := AnalyzeResponse{RunID: report.RunID, Solved: len(report.Rows)}
		for i := range report.Rows {
			row := &report.Rows[i]
			resp.Rows = append(resp.Rows, RowJSON{
				Row:        row.RowIndex,
				ScenarioID: row.ScenarioID,
				Result:     newResultJSON(&row.Result),
			})
		}
		s.writeJSON(w, http.StatusOK, resp)
	default:
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "format must be json, csv or md"})
	}
}

func (s *Server) handleVerifyRun(w http.ResponseWriter, r *http.Request) {
	if len(s.stores) == 0 {
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no result store configured"})
		return
	}

	runID := r.PathValue("id")
	report, err := verification.NewRunVerifier(s.stores[0].Store, s.optimizer).VerifyRun(r.Context(), runID)
	if errors.Is(err, verification.ErrRunNotFound) {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("run %s not found", runID)})
		return
	}
	if err != nil {
		s.logger.Printf("verify run %s: %v", runID, err)
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to verify run"})
		return
	}

	resp := VerifyResponse{
		RunID:         report.RunID,
		TotalRows:     report.TotalRows,
		MatchedRows:   report.MatchedRows,
		DivergentRows: report.DivergentRows,
	}
	for _, res := range report.Results {
		if res.Match {
			continue
		}
		row := DivergentRowJSON{Row: res.RowIndex, ScenarioID: res.ScenarioID}
		for _, d := range res.Divergences {
			row.Fields = append(row.Fields, d.Field)
		}
		resp.Divergent = append(resp.Divergent, row)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// errorResponse maps a run error to an HTTP status.
// Parameter errors are the caller's fault (422); anything else is ours (500).
func errorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var rowErr *analysis.RowError
	if errors.As(err, &rowErr) {
		row := rowErr.RowIndex
		resp.Row = &row
	}

	switch {
	case errors.Is(err, domain.ErrPreconditionViolation), errors.Is(err, domain.ErrDegenerateInput):
		resp.Kind = analysis.FailureKind(err)
		return http.StatusUnprocessableEntity, resp
	default:
		return http.StatusInternalServerError, resp
	}
}
