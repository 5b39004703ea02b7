package types

import (
	"fmt"
	"strings"
	"time"
)

// Workbook is a batch of candidate test cases imported from a CSV file
// (or authored in bulk) that passes through an approval step before any
// row becomes a persisted test case.
type Workbook struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	SourceFile string         `json:"source_file,omitempty"`
	ModuleID   string         `json:"module_id,omitempty"`
	Status     WorkbookStatus `json:"status"`
	RowCount   int            `json:"row_count"`
	CreatedBy  string         `json:"created_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate checks if the workbook has valid field values
func (w *Workbook) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !w.Status.IsValid() {
		return fmt.Errorf("invalid workbook status: %s", w.Status)
	}
	return nil
}

// WorkbookStatus represents the review state of a workbook
type WorkbookStatus string

const (
	WorkbookPending   WorkbookStatus = "pending"
	WorkbookReviewing WorkbookStatus = "reviewing"
	WorkbookApproved  WorkbookStatus = "approved"
	WorkbookRejected  WorkbookStatus = "rejected"
)

// IsValid checks if the workbook status value is valid
func (s WorkbookStatus) IsValid() bool {
	switch s {
	case WorkbookPending, WorkbookReviewing, WorkbookApproved, WorkbookRejected:
		return true
	}
	return false
}

// WorkbookRow is a single candidate test case awaiting review.
type WorkbookRow struct {
	ID             string    `json:"id"` // uuid, assigned at import
	WorkbookID     string    `json:"workbook_id"`
	LineNumber     int       `json:"line_number"` // 1-based CSV line for review displays
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Preconditions  string    `json:"preconditions,omitempty"`
	Steps          string    `json:"steps"`
	ExpectedResult string    `json:"expected_result,omitempty"`
	Priority       int       `json:"priority"`
	Tags           []string  `json:"tags,omitempty"`
	Status         RowStatus `json:"status"`

	// Duplicate flagging (set by import-time detection)
	DuplicateOf string  `json:"duplicate_of,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`

	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	// CaseID is set once the row is approved and materialized
	CaseID string `json:"case_id,omitempty"`
}

// Validate checks if the workbook row has valid field values
func (r *WorkbookRow) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(r.Steps) == "" {
		return fmt.Errorf("steps are required")
	}
	if r.Priority < 0 || r.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", r.Priority)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid row status: %s", r.Status)
	}
	if r.Status == RowDuplicate && r.DuplicateOf == "" {
		return fmt.Errorf("duplicate_of must be set for duplicate rows")
	}
	return nil
}

// ToCase converts an approved row into a draft test case. The caller fills
// in the module and persists it.
func (r *WorkbookRow) ToCase(workbookID, moduleID string) *TestCase {
	return &TestCase{
		Title:          r.Title,
		Description:    r.Description,
		Preconditions:  r.Preconditions,
		Steps:          r.Steps,
		ExpectedResult: r.ExpectedResult,
		ModuleID:       moduleID,
		Priority:       r.Priority,
		Status:         CaseDraft,
		Automation:     AutomationManual,
		Source:         SourceWorkbook,
		SourceRef:      workbookID,
		Tags:           r.Tags,
	}
}

// RowStatus represents the review state of a workbook row
type RowStatus string

const (
	RowPending   RowStatus = "pending"
	RowApproved  RowStatus = "approved"
	RowRejected  RowStatus = "rejected"
	RowDuplicate RowStatus = "duplicate"
)

// IsValid checks if the row status value is valid
func (s RowStatus) IsValid() bool {
	switch s {
	case RowPending, RowApproved, RowRejected, RowDuplicate:
		return true
	}
	return false
}
