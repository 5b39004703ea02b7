// Package api exposes the portal over HTTP. Routing is chi, responses are
// JSON envelopes, and storage errors map onto 404/400/409 in one place.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caseflow/caseflow/internal/dedup"
	"github.com/caseflow/caseflow/internal/feature"
	"github.com/caseflow/caseflow/internal/jira"
	"github.com/caseflow/caseflow/internal/search"
	"github.com/caseflow/caseflow/internal/slack"
	"github.com/caseflow/caseflow/internal/storage"
	"github.com/caseflow/caseflow/internal/workbook"
)

// Options carries the optional collaborators. A nil Syncer returns 503
// from the JIRA routes; a nil Notifier disables notifications.
type Options struct {
	Detector *dedup.Detector
	Syncer   *jira.Syncer
	Notifier *slack.Notifier
}

// Server wires storage and the domain pipelines into an HTTP handler
type Server struct {
	store      storage.Storage
	pipeline   *workbook.Pipeline
	publisher  *feature.Publisher
	classifier *search.Classifier
	syncer     *jira.Syncer
	notifier   *slack.Notifier
	router     chi.Router
}

// NewServer builds the router. The returned server is ready to serve.
func NewServer(store storage.Storage, opts Options) *Server {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = slack.NewNotifier("")
	}

	s := &Server{
		store:      store,
		pipeline:   workbook.NewPipeline(store, opts.Detector),
		publisher:  feature.NewPublisher(store),
		classifier: search.NewClassifier(),
		syncer:     opts.Syncer,
		notifier:   notifier,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/testcases", func(r chi.Router) {
			r.Post("/", s.handleCreateCase)
			r.Get("/", s.handleListCases)
			r.Get("/{id}", s.handleGetCase)
			r.Patch("/{id}", s.handleUpdateCase)
			r.Delete("/{id}", s.handleDeprecateCase)
			r.Post("/{id}/tags", s.handleAddTag)
			r.Delete("/{id}/tags/{tag}", s.handleRemoveTag)
		})

		r.Route("/modules", func(r chi.Router) {
			r.Post("/", s.handleCreateModule)
			r.Get("/", s.handleListModules)
			r.Get("/{id}", s.handleGetModule)
			r.Patch("/{id}", s.handleUpdateModule)
			r.Delete("/{id}", s.handleDeleteModule)
		})

		r.Route("/releases", func(r chi.Router) {
			r.Post("/", s.handleCreateRelease)
			r.Get("/", s.handleListReleases)
			r.Get("/{id}", s.handleGetRelease)
			r.Patch("/{id}", s.handleUpdateRelease)
			r.Get("/{id}/summary", s.handleReleaseSummary)
			r.Get("/{id}/cases", s.handleReleaseCases)
			r.Post("/{id}/cases/{caseID}", s.handleLinkCase)
			r.Delete("/{id}/cases/{caseID}", s.handleUnlinkCase)
			r.Put("/{id}/cases/{caseID}/result", s.handleSetRunResult)
			r.Post("/{id}/stories/{key}", s.handleLinkStory)
			r.Post("/{id}/tickets/{key}", s.handleLinkTicket)
		})

		r.Route("/stories", func(r chi.Router) {
			r.Get("/", s.handleListStories)
			r.Get("/{key}", s.handleGetStory)
			r.Get("/{key}/cases", s.handleStoryCases)
			r.Post("/{key}/cases/{caseID}", s.handleLinkStoryCase)
		})

		r.Get("/tickets", s.handleListTickets)

		r.Route("/workbooks", func(r chi.Router) {
			r.Post("/", s.handleImportWorkbook)
			r.Get("/", s.handleListWorkbooks)
			r.Get("/{id}", s.handleGetWorkbook)
			r.Get("/{id}/rows", s.handleWorkbookRows)
			r.Post("/{id}/rows/{rowID}/approve", s.handleApproveRow)
			r.Post("/{id}/rows/{rowID}/reject", s.handleRejectRow)
			r.Post("/{id}/approve-all", s.handleApproveAll)
		})

		r.Post("/features/publish", s.handlePublishFeature)
		r.Get("/search", s.handleSearch)
		r.Get("/reports/releases/{id}", s.handleReleaseReport)
		r.Post("/jira/sync", s.handleJIRASync)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Printf("[API] shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
