package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.store.ListStories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"stories": stories, "count": len(stories)})
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	story, err := s.store.GetStory(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, story)
}

func (s *Server) handleStoryCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.GetStoryCases(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cases": cases, "count": len(cases)})
}

func (s *Server) handleLinkStoryCase(w http.ResponseWriter, r *http.Request) {
	err := s.store.LinkStoryCase(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "caseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.store.ListTickets(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets, "count": len(tickets)})
}

// handleJIRASync runs a sync inline. 503 when the integration is not
// configured so callers can distinguish "off" from "failed".
func (s *Server) handleJIRASync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		respondJSON(w, http.StatusServiceUnavailable,
			map[string]string{"error": "jira integration is not configured"})
		return
	}
	report, err := s.syncer.Sync(r.Context())
	if err != nil {
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	respondJSON(w, http.StatusOK, report)
}
