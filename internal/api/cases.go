package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caseflow/caseflow/internal/types"
)

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var c types.TestCase
	if err := decodeJSON(r, &c); err != nil {
		respondError(w, err)
		return
	}
	if c.Status == "" {
		c.Status = types.CaseDraft
	}
	if c.Automation == "" {
		c.Automation = types.AutomationManual
	}
	if c.Source == "" {
		c.Source = types.SourceManual
	}
	if err := s.store.CreateCase(r.Context(), &c, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, &c)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	filter, err := caseFilterFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	cases, err := s.store.ListCases(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cases": cases, "count": len(cases)})
}

// caseFilterFromQuery maps query parameters onto a CaseFilter
func caseFilterFromQuery(r *http.Request) (types.CaseFilter, error) {
	var filter types.CaseFilter
	q := r.URL.Query()

	if v := q.Get("module_id"); v != "" {
		filter.ModuleID = &v
	}
	if v := q.Get("status"); v != "" {
		status := types.CaseStatus(v)
		if !status.IsValid() {
			return filter, badParam("status", v)
		}
		filter.Status = &status
	}
	if v := q.Get("automation"); v != "" {
		automation := types.AutomationStatus(v)
		if !automation.IsValid() {
			return filter, badParam("automation", v)
		}
		filter.Automation = &automation
	}
	if v := q.Get("priority"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > 4 {
			return filter, badParam("priority", v)
		}
		filter.Priority = &p
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, badParam("since", v)
		}
		filter.Since = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, badParam("limit", v)
		}
		filter.Limit = n
	}
	filter.Tags = q["tag"]
	filter.Text = q.Get("q")

	return filter, nil
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := decodeJSON(r, &updates); err != nil {
		respondError(w, err)
		return
	}
	if len(updates) == 0 {
		badRequest(w, "no fields to update")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.UpdateCase(r.Context(), id, updates, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	c, err := s.store.GetCase(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeprecateCase(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if err := s.store.DeprecateCase(r.Context(), chi.URLParam(r, "id"), reason, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tag string `json:"tag"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.Tag == "" {
		badRequest(w, "tag is required")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.AddTag(r.Context(), id, body.Tag, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	tags, err := s.store.GetTags(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tag := chi.URLParam(r, "tag")
	if err := s.store.RemoveTag(r.Context(), id, tag, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
