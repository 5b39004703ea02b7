package report

import (
	"context"
	"time"

	"github.com/caseflow/caseflow/internal/storage"
	"github.com/caseflow/caseflow/internal/types"
)

// Data is everything a release report renders. Assembly is separated
// from rendering so the same data can feed other output formats.
type Data struct {
	Summary     *types.ReleaseSummary `json:"summary"`
	Runs        []*types.CaseRun      `json:"runs"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Collect assembles report data for one release
func Collect(ctx context.Context, store storage.Storage, releaseID string) (*Data, error) {
	summary, err := store.GetReleaseSummary(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	runs, err := store.GetReleaseCases(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	return &Data{
		Summary:     summary,
		Runs:        runs,
		GeneratedAt: time.Now(),
	}, nil
}
