package cli

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/mchmarny/trackscore/pkg/app"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
)

func faviconHandler(w http.ResponseWriter, r *http.Request) {
	file, err := embedFS.ReadFile("assets/img/favicon.svg")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err = w.Write(file); err != nil {
		slog.Error("failed to write favicon", "error", err)
	}
}

func homeViewHandler(tmpl *template.Template, s *app.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := map[string]any{
			"version":    version,
			"commit":     commit,
			"build_date": date,
			"err":        r.URL.Query().Get("err"),
			"hypotheses": s.Hypotheses(),
			"id_column":  s.IDColumn(),
			"min_weight": hypothesis.MinWeight,
			"max_weight": hypothesis.MaxWeight,
			"step":       hypothesis.WeightStep,
		}
		if err := tmpl.ExecuteTemplate(w, "home", d); err != nil {
			slog.Error("template render failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}
