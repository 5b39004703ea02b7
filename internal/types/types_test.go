package types

import (
	"strings"
	"testing"
)

func TestTestCaseValidate(t *testing.T) {
	valid := func() *TestCase {
		return &TestCase{
			Title:          "Login with valid credentials",
			Steps:          "Given a registered user\nWhen they log in\nThen the dashboard loads",
			ExpectedResult: "Dashboard is shown",
			Priority:       2,
			Status:         CaseActive,
			Automation:     AutomationManual,
			Source:         SourceManual,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*TestCase)
		wantErr string
	}{
		{"valid case", func(c *TestCase) {}, ""},
		{"missing title", func(c *TestCase) { c.Title = "" }, "title is required"},
		{"title too long", func(c *TestCase) { c.Title = strings.Repeat("x", 501) }, "500 characters"},
		{"priority too high", func(c *TestCase) { c.Priority = 5 }, "priority must be between"},
		{"priority negative", func(c *TestCase) { c.Priority = -1 }, "priority must be between"},
		{"bad status", func(c *TestCase) { c.Status = "archived" }, "invalid case status"},
		{"bad automation", func(c *TestCase) { c.Automation = "robot" }, "invalid automation status"},
		{"bad source", func(c *TestCase) { c.Source = "email" }, "invalid case source"},
		{"missing steps", func(c *TestCase) { c.Steps = "  " }, "steps are required"},
		{"active without expected result", func(c *TestCase) { c.ExpectedResult = "" }, "expected_result is required"},
		{"draft without expected result", func(c *TestCase) {
			c.Status = CaseDraft
			c.ExpectedResult = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestModuleValidate(t *testing.T) {
	m := &Module{Name: "Checkout"}
	if err := m.Validate(); err != nil {
		t.Errorf("expected valid module, got %v", err)
	}

	m.Name = "   "
	if err := m.Validate(); err == nil {
		t.Error("expected error for blank name")
	}

	m.Name = strings.Repeat("m", 121)
	if err := m.Validate(); err == nil {
		t.Error("expected error for overlong name")
	}
}

func TestEnumValidity(t *testing.T) {
	if !CaseDraft.IsValid() || !CaseActive.IsValid() || !CaseDeprecated.IsValid() {
		t.Error("expected all case statuses to be valid")
	}
	if CaseStatus("open").IsValid() {
		t.Error("expected unknown case status to be invalid")
	}
	if AutomationStatus("").IsValid() {
		t.Error("expected empty automation status to be invalid")
	}
	if CaseSource("import").IsValid() {
		t.Error("expected unknown source to be invalid")
	}
}
