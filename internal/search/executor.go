package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/caseflow/caseflow/internal/storage"
	"github.com/caseflow/caseflow/internal/types"
)

// Results is what executing an intent produced. Exactly one of the result
// fields is populated, matching the intent kind.
type Results struct {
	Intent  *Intent           `json:"intent"`
	Cases   []*types.TestCase `json:"cases,omitempty"`
	Count   *int              `json:"count,omitempty"`
	Stories []*types.Story    `json:"stories,omitempty"`
	Runs    []*types.CaseRun  `json:"runs,omitempty"`
}

// Execute runs a classified intent against storage. Module names from the
// query are resolved to IDs here; an unknown module name is an error
// rather than a silent empty result.
func Execute(ctx context.Context, store storage.Storage, intent *Intent) (*Results, error) {
	filter := intent.Filter
	if intent.ModuleName != "" {
		module, err := store.GetModuleByName(ctx, intent.ModuleName)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", intent.ModuleName, err)
		}
		filter.ModuleID = &module.ID
	}

	results := &Results{Intent: intent}

	switch intent.Kind {
	case KindListStories:
		stories, err := store.ListStories(ctx)
		if err != nil {
			return nil, err
		}
		results.Stories = stories

	case KindListFailures:
		runs, err := failedRuns(ctx, store, intent.Release)
		if err != nil {
			return nil, err
		}
		results.Runs = runs

	case KindCountCases:
		cases, err := store.ListCases(ctx, filter)
		if err != nil {
			return nil, err
		}
		count := len(cases)
		results.Count = &count

	default: // KindListCases, KindRecentCases
		cases, err := store.ListCases(ctx, filter)
		if err != nil {
			return nil, err
		}
		results.Cases = cases
	}

	return results, nil
}

// failedRuns collects failed case runs, scoped to one release when the
// query named one, otherwise across all releases.
func failedRuns(ctx context.Context, store storage.Storage, release string) ([]*types.CaseRun, error) {
	releases, err := store.ListReleases(ctx)
	if err != nil {
		return nil, err
	}

	var failures []*types.CaseRun
	matched := false
	for _, r := range releases {
		if release != "" && !releaseMatches(r, release) {
			continue
		}
		matched = true

		runs, err := store.GetReleaseCases(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, run := range runs {
			if run.Status == types.RunFail {
				failures = append(failures, run)
			}
		}
	}

	if release != "" && !matched {
		return nil, fmt.Errorf("no release matching %q", release)
	}
	return failures, nil
}

func releaseMatches(r *types.Release, query string) bool {
	q := strings.ToLower(query)
	return strings.ToLower(r.Version) == q ||
		strings.ToLower(r.Name) == q ||
		strings.EqualFold(r.ID, query)
}
