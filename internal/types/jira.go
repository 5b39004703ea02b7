package types

import (
	"fmt"
	"strings"
	"time"
)

// Story is a JIRA story mirrored into the local database. The JIRA issue
// key ("PROJ-123") is the primary identifier; local rows are overwritten
// on every sync.
type Story struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Assignee    string    `json:"assignee,omitempty"`
	StoryPoints float64   `json:"story_points,omitempty"`
	SyncedAt    time.Time `json:"synced_at"`
}

// Validate checks if the story has valid field values
func (s *Story) Validate() error {
	if err := validateJiraKey(s.Key); err != nil {
		return err
	}
	if strings.TrimSpace(s.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	return nil
}

// ProductionTicket is a JIRA bug mirrored into the local database.
type ProductionTicket struct {
	Key      string         `json:"key"`
	Summary  string         `json:"summary"`
	Severity TicketSeverity `json:"severity"`
	Status   string         `json:"status"`
	SyncedAt time.Time      `json:"synced_at"`
}

// Validate checks if the ticket has valid field values
func (t *ProductionTicket) Validate() error {
	if err := validateJiraKey(t.Key); err != nil {
		return err
	}
	if strings.TrimSpace(t.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	if !t.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", t.Severity)
	}
	return nil
}

// TicketSeverity classifies production tickets
type TicketSeverity string

const (
	SeverityCritical TicketSeverity = "critical"
	SeverityHigh     TicketSeverity = "high"
	SeverityMedium   TicketSeverity = "medium"
	SeverityLow      TicketSeverity = "low"
)

// IsValid checks if the severity value is valid
func (s TicketSeverity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// validateJiraKey checks the "PROJECT-123" shape without being strict about
// JIRA's project-key rules (those vary per server configuration).
func validateJiraKey(key string) error {
	if key == "" {
		return fmt.Errorf("jira key is required")
	}
	idx := strings.LastIndex(key, "-")
	if idx <= 0 || idx == len(key)-1 {
		return fmt.Errorf("invalid jira key format: %s (expected PROJECT-NUMBER)", key)
	}
	for _, r := range key[idx+1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid jira key format: %s (expected PROJECT-NUMBER)", key)
		}
	}
	return nil
}
