package api

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseflow/caseflow/internal/types"
)

// handleImportWorkbook ingests a CSV body. Query params: name (required),
// module_id (optional default module for approved rows), source (original
// filename for provenance).
func (s *Server) handleImportWorkbook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		badRequest(w, "name parameter is required")
		return
	}
	moduleID := q.Get("module_id")
	if moduleID != "" {
		if _, err := s.store.GetModule(r.Context(), moduleID); err != nil {
			respondError(w, err)
			return
		}
	}

	body := io.LimitReader(r.Body, maxBodySize)
	summary, err := s.pipeline.Import(r.Context(), body, name, q.Get("source"), moduleID, actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleListWorkbooks(w http.ResponseWriter, r *http.Request) {
	workbooks, err := s.store.ListWorkbooks(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"workbooks": workbooks, "count": len(workbooks)})
}

func (s *Server) handleGetWorkbook(w http.ResponseWriter, r *http.Request) {
	wb, err := s.store.GetWorkbook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wb)
}

func (s *Server) handleWorkbookRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.GetWorkbookRows(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rows": rows, "count": len(rows)})
}

func (s *Server) handleApproveRow(w http.ResponseWriter, r *http.Request) {
	c, err := s.pipeline.ApproveRow(r.Context(), chi.URLParam(r, "rowID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleRejectRow(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.RejectRow(r.Context(), chi.URLParam(r, "rowID"), actor(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApproveAll approves every pending row (duplicate-flagged rows need
// an explicit decision) and finalizes the workbook.
func (s *Server) handleApproveAll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	who := actor(r)

	approved, err := s.pipeline.ApproveAllPending(r.Context(), id, who)
	if err != nil {
		respondError(w, err)
		return
	}
	status, err := s.pipeline.Finalize(r.Context(), id, who)
	if err != nil {
		respondError(w, err)
		return
	}

	if status == types.WorkbookApproved && s.notifier.Enabled() {
		if wb, err := s.store.GetWorkbook(r.Context(), id); err == nil {
			if err := s.notifier.WorkbookApproved(r.Context(), wb, approved); err != nil {
				log.Printf("[API] workbook notification failed: %v", err)
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"approved": approved, "status": status})
}
