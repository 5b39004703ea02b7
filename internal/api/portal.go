package api

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseflow/caseflow/internal/report"
	"github.com/caseflow/caseflow/internal/search"
)

// handlePublishFeature parses a Gherkin feature body and publishes its
// scenarios as draft cases. Query params: module (overrides the @module:
// tag), filename (for provenance, default "api.feature").
func (s *Server) handlePublishFeature(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filename := q.Get("filename")
	if filename == "" {
		filename = "api.feature"
	}

	body := io.LimitReader(r.Body, maxBodySize)
	result, err := s.publisher.Publish(r.Context(), body, filename, q.Get("module"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		badRequest(w, "q parameter is required")
		return
	}

	intent := s.classifier.Classify(query)
	results, err := search.Execute(r.Context(), s.store, intent)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// handleReleaseReport streams a release report as PDF
func (s *Server) handleReleaseReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := report.Collect(r.Context(), s.store, id)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".pdf"))
	if err := report.Render(data, w); err != nil {
		// Headers are out; all we can do is log
		log.Printf("[API] report render failed for %s: %v (%s)", id, err, RequestID(r.Context()))
	}
}
