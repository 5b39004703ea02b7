package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseflow/caseflow/internal/types"
)

func (s *Server) handleCreateModule(w http.ResponseWriter, r *http.Request) {
	var m types.Module
	if err := decodeJSON(r, &m); err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.CreateModule(r.Context(), &m, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, &m)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := s.store.ListModules(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"modules": modules, "count": len(modules)})
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetModule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdateModule(w http.ResponseWriter, r *http.Request) {
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
	if err := s.store.UpdateModule(r.Context(), id, updates, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	m, err := s.store.GetModule(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteModule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteModule(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
