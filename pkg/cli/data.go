package cli

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mchmarny/trackscore/pkg/app"
	"github.com/mchmarny/trackscore/pkg/dataset"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/report"
)

const (
	importFormField = "file"
	maxWeightBody   = 1 << 10
)

type weightRequest struct {
	Weight *float64 `json:"weight"`
}

type resultsResponse struct {
	Import *dataset.ImportInfo `json:"import,omitempty"`
	Table  []report.Row        `json:"table"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func hypothesesAPIHandler(s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Hypotheses())
	}
}

func weightAPIHandler(s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hypothesis index")
			return
		}

		var req weightRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWeightBody)).Decode(&req); err != nil || req.Weight == nil {
			writeError(w, http.StatusBadRequest, `expected body {"weight": number}`)
			return
		}

		h, err := s.SetWeight(r.Context(), index, *req.Weight)
		if err != nil {
			if errors.Is(err, hypothesis.ErrIndex) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			slog.Error("failed to set weight", "index", index, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to set weight")
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func importAPIHandler(s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, dataset.MaxImportBytes+(1<<20))
		file, header, err := r.FormFile(importFormField)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expected multipart field: "+importFormField)
			return
		}
		defer file.Close()

		info, err := s.ImportCSV(file, header.Filename)
		if err != nil {
			if errors.Is(err, dataset.ErrImport) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.Error("failed to import file", "file", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to import file")
			return
		}
		slog.Info("file imported", "file", info.Source, "records", info.Records, "id", info.ID)
		writeJSON(w, http.StatusOK, info)
	}
}

func resultsAPIHandler(s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		v := s.View()
		writeJSON(w, http.StatusOK, &resultsResponse{Import: v.Import, Table: v.Table})
	}
}

func barChartAPIHandler(s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.View().Bar)
	}
}

func distributionAPIHandler(s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.View().Distribution)
	}
}

func divergentChartAPIHandler(s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.View().Divergent)
	}
}
