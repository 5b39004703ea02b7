package types

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// Release is a versioned container linking test cases, stories, and
// production tickets for execution tracking.
type Release struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Version     string        `json:"version"` // "v1.4.0" form, semver ordered
	Description string        `json:"description,omitempty"`
	Status      ReleaseStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ReleasedAt  *time.Time    `json:"released_at,omitempty"`
}

// Validate checks if the release has valid field values
func (r *Release) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !semver.IsValid(r.Version) {
		return fmt.Errorf("version must be valid semver with a leading v (got %q)", r.Version)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid release status: %s", r.Status)
	}
	return nil
}

// CompareVersion orders releases by semantic version
func (r *Release) CompareVersion(other *Release) int {
	return semver.Compare(r.Version, other.Version)
}

// ReleaseStatus represents the lifecycle state of a release
type ReleaseStatus string

const (
	ReleasePlanned    ReleaseStatus = "planned"
	ReleaseInProgress ReleaseStatus = "in_progress"
	ReleaseReleased   ReleaseStatus = "released"
)

// IsValid checks if the release status value is valid
func (s ReleaseStatus) IsValid() bool {
	switch s {
	case ReleasePlanned, ReleaseInProgress, ReleaseReleased:
		return true
	}
	return false
}

// CanTransitionTo enforces forward-only release transitions
// (planned -> in_progress -> released)
func (s ReleaseStatus) CanTransitionTo(next ReleaseStatus) bool {
	switch s {
	case ReleasePlanned:
		return next == ReleaseInProgress || next == ReleaseReleased
	case ReleaseInProgress:
		return next == ReleaseReleased
	}
	return false
}

// RunStatus is the execution result of a test case within a release
type RunStatus string

const (
	RunNotRun  RunStatus = "not_run"
	RunPass    RunStatus = "pass"
	RunFail    RunStatus = "fail"
	RunBlocked RunStatus = "blocked"
)

// IsValid checks if the run status value is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunNotRun, RunPass, RunFail, RunBlocked:
		return true
	}
	return false
}

// CaseRun is a test case linked into a release together with its result
type CaseRun struct {
	ReleaseID  string     `json:"release_id"`
	CaseID     string     `json:"case_id"`
	CaseTitle  string     `json:"case_title,omitempty"`
	Priority   int        `json:"priority,omitempty"`
	Status     RunStatus  `json:"status"`
	ExecutedBy string     `json:"executed_by,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// ReleaseSummary aggregates run results for a release
type ReleaseSummary struct {
	Release     *Release            `json:"release"`
	TotalCases  int                 `json:"total_cases"`
	ByRunStatus map[RunStatus]int   `json:"by_run_status"`
	PassRate    float64             `json:"pass_rate"` // pass / executed, 0 when nothing ran
	Stories     []*Story            `json:"stories,omitempty"`
	Tickets     []*ProductionTicket `json:"tickets,omitempty"`
}
