package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseflow/caseflow/internal/types"
)

func (s *Server) handleCreateRelease(w http.ResponseWriter, r *http.Request) {
	var rel types.Release
	if err := decodeJSON(r, &rel); err != nil {
		respondError(w, err)
		return
	}
	if rel.Status == "" {
		rel.Status = types.ReleasePlanned
	}
	if err := s.store.CreateRelease(r.Context(), &rel, actor(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, &rel)
}

func (s *Server) handleListReleases(w http.ResponseWriter, r *http.Request) {
	releases, err := s.store.ListReleases(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"releases": releases, "count": len(releases)})
}

func (s *Server) handleGetRelease(w http.ResponseWriter, r *http.Request) {
	rel, err := s.store.GetRelease(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rel)
}

// handleUpdateRelease treats "status" as a lifecycle transition and any
// other fields as a plain update. Transitioning to released announces the
// release when Slack is configured.
func (s *Server) handleUpdateRelease(w http.ResponseWriter, r *http.Request) {
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

	if raw, ok := updates["status"]; ok {
		statusStr, ok := raw.(string)
		if !ok {
			badParamRespond(w, "status", raw)
			return
		}
		next := types.ReleaseStatus(statusStr)
		if !next.IsValid() {
			badParamRespond(w, "status", statusStr)
			return
		}
		if err := s.store.TransitionRelease(r.Context(), id, next, actor(r)); err != nil {
			respondError(w, err)
			return
		}
		delete(updates, "status")

		if next == types.ReleaseReleased && s.notifier.Enabled() {
			s.announceRelease(r, id)
		}
	}

	if len(updates) > 0 {
		if err := s.store.UpdateRelease(r.Context(), id, updates, actor(r)); err != nil {
			respondError(w, err)
			return
		}
	}

	rel, err := s.store.GetRelease(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rel)
}

func (s *Server) announceRelease(r *http.Request, id string) {
	summary, err := s.store.GetReleaseSummary(r.Context(), id)
	if err != nil {
		log.Printf("[API] failed to build release summary for notification: %v", err)
		return
	}
	if err := s.notifier.ReleasePublished(r.Context(), summary.Release, summary); err != nil {
		log.Printf("[API] release notification failed: %v", err)
	}
}

func (s *Server) handleReleaseSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.GetReleaseSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReleaseCases(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetReleaseCases(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) handleLinkCase(w http.ResponseWriter, r *http.Request) {
	err := s.store.LinkCase(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "caseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlinkCase(w http.ResponseWriter, r *http.Request) {
	err := s.store.UnlinkCase(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "caseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRunResult(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, err)
		return
	}
	status := types.RunStatus(body.Status)
	if !status.IsValid() {
		badParamRespond(w, "status", body.Status)
		return
	}
	err := s.store.SetRunResult(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "caseID"), status, actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLinkStory(w http.ResponseWriter, r *http.Request) {
	err := s.store.LinkStory(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLinkTicket(w http.ResponseWriter, r *http.Request) {
	err := s.store.LinkTicket(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
