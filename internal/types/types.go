package types

import (
	"fmt"
	"strings"
	"time"
)

// TestCase represents a single manual or automated test scenario.
type TestCase struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Preconditions  string           `json:"preconditions,omitempty"`
	Steps          string           `json:"steps"`
	ExpectedResult string           `json:"expected_result,omitempty"`
	ModuleID       string           `json:"module_id,omitempty"`
	Priority       int              `json:"priority"`
	Status         CaseStatus       `json:"status"`
	Automation     AutomationStatus `json:"automation"`
	Source         CaseSource       `json:"source"`
	SourceRef      string           `json:"source_ref,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	DeprecatedAt   *time.Time       `json:"deprecated_at,omitempty"`
}

// Validate checks if the test case has valid field values
func (c *TestCase) Validate() error {
	if len(c.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(c.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(c.Title))
	}
	if c.Priority < 0 || c.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", c.Priority)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid case status: %s", c.Status)
	}
	if !c.Automation.IsValid() {
		return fmt.Errorf("invalid automation status: %s", c.Automation)
	}
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid case source: %s", c.Source)
	}
	if len(strings.TrimSpace(c.Steps)) == 0 {
		return fmt.Errorf("steps are required")
	}

	// Drafts may still be missing an expected result (feature-file publishes
	// and workbook candidates arrive as drafts). Active cases may not.
	if c.Status == CaseActive && strings.TrimSpace(c.ExpectedResult) == "" {
		return fmt.Errorf("expected_result is required for active test cases")
	}

	return nil
}

// CaseStatus represents the lifecycle state of a test case
type CaseStatus string

const (
	CaseDraft      CaseStatus = "draft"
	CaseActive     CaseStatus = "active"
	CaseDeprecated CaseStatus = "deprecated"
)

// IsValid checks if the case status value is valid
func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseDraft, CaseActive, CaseDeprecated:
		return true
	}
	return false
}

// AutomationStatus tracks how a test case is executed
type AutomationStatus string

const (
	AutomationManual    AutomationStatus = "manual"
	AutomationCandidate AutomationStatus = "candidate"
	AutomationAutomated AutomationStatus = "automated"
)

// IsValid checks if the automation status value is valid
func (a AutomationStatus) IsValid() bool {
	switch a {
	case AutomationManual, AutomationCandidate, AutomationAutomated:
		return true
	}
	return false
}

// CaseSource records where a test case came from
type CaseSource string

const (
	SourceManual      CaseSource = "manual"
	SourceFeatureFile CaseSource = "feature_file"
	SourceWorkbook    CaseSource = "workbook"
)

// IsValid checks if the case source value is valid
func (s CaseSource) IsValid() bool {
	switch s {
	case SourceManual, SourceFeatureFile, SourceWorkbook:
		return true
	}
	return false
}

// Module is a grouping unit for test cases (a product area or component)
type Module struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	CaseCount   int       `json:"case_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks if the module has valid field values
func (m *Module) Validate() error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > 120 {
		return fmt.Errorf("name must be 120 characters or less (got %d)", len(name))
	}
	return nil
}

// CaseFilter defines criteria for listing and searching test cases
type CaseFilter struct {
	ModuleID   *string           `json:"module_id,omitempty"`
	Status     *CaseStatus       `json:"status,omitempty"`
	Automation *AutomationStatus `json:"automation,omitempty"`
	Priority   *int              `json:"priority,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Text       string            `json:"text,omitempty"` // matches title, description, steps, id
	Since      *time.Time        `json:"since,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// Statistics summarizes the portal contents for status displays
type Statistics struct {
	TotalCases     int            `json:"total_cases"`
	CasesByStatus  map[string]int `json:"cases_by_status"`
	CasesByAuto    map[string]int `json:"cases_by_automation"`
	TotalModules   int            `json:"total_modules"`
	TotalReleases  int            `json:"total_releases"`
	TotalStories   int            `json:"total_stories"`
	TotalTickets   int            `json:"total_tickets"`
	TotalWorkbooks int            `json:"total_workbooks"`
	PendingRows    int            `json:"pending_workbook_rows"`
}

// Event types recorded in the audit trail
const (
	EventCreated     = "created"
	EventUpdated     = "updated"
	EventDeprecated  = "deprecated"
	EventLinked      = "linked"
	EventUnlinked    = "unlinked"
	EventRunRecorded = "run_recorded"
	EventImported    = "imported"
	EventApproved    = "approved"
	EventRejected    = "rejected"
	EventPublished   = "published"
	EventSynced      = "synced"
)

// Event represents an entry in the audit trail
type Event struct {
	ID        int64     `json:"id"`
	EntityID  string    `json:"entity_id"`
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
