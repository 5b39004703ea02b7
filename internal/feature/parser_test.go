package feature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/types"
)

const loginFeature = `@module:auth @smoke
Feature: Login

  Background:
    Given the login page is open

  @happy-path
  Scenario: Login with valid credentials
    When the user enters a valid email and password
    Then the dashboard is shown

  Scenario: Login with a locked account
    When the user enters credentials for a locked account
    Then an account-locked message is shown
`

func TestParseFile(t *testing.T) {
	parsed, err := ParseFile(strings.NewReader(loginFeature), "login.feature")
	require.NoError(t, err)

	assert.Equal(t, "Login", parsed.Name)
	assert.Equal(t, "auth", parsed.ModuleName)
	require.Len(t, parsed.Cases, 2)

	first := parsed.Cases[0]
	assert.Equal(t, "Login with valid credentials", first.Title)
	assert.Equal(t, "Given the login page is open", first.Preconditions)
	assert.Equal(t, "When the user enters a valid email and password\nThen the dashboard is shown", first.Steps)
	assert.Equal(t, types.CaseDraft, first.Status)
	assert.Equal(t, types.AutomationCandidate, first.Automation)
	assert.Equal(t, types.SourceFeatureFile, first.Source)
	assert.Equal(t, "login.feature#Login with valid credentials", first.SourceRef)
	// Feature tags carry over, minus the module tag; scenario tags append
	assert.Equal(t, []string{"smoke", "happy-path"}, first.Tags)

	second := parsed.Cases[1]
	assert.Equal(t, "Login with a locked account", second.Title)
	assert.Equal(t, []string{"smoke"}, second.Tags)
}

func TestParseFileOutlineExpansion(t *testing.T) {
	src := `Feature: Quantity validation

  Scenario Outline: Reject quantity <qty>
    When the user orders <qty> units
    Then the error "<message>" is shown

    Examples:
      | qty | message           |
      | 0   | quantity too low  |
      | 999 | quantity too high |
`
	parsed, err := ParseFile(strings.NewReader(src), "quantity.feature")
	require.NoError(t, err)
	require.Len(t, parsed.Cases, 2)

	first := parsed.Cases[0]
	assert.Equal(t, "Reject quantity 0 (0, quantity too low)", first.Title)
	assert.Contains(t, first.Steps, "When the user orders 0 units")
	assert.Contains(t, first.Steps, `Then the error "quantity too low" is shown`)

	second := parsed.Cases[1]
	assert.Equal(t, "Reject quantity 999 (999, quantity too high)", second.Title)
	assert.Contains(t, second.Steps, "When the user orders 999 units")

	// Both expansions reference the same scenario
	assert.Equal(t, first.SourceRef, second.SourceRef)
}

func TestParseFileDocStringAndTable(t *testing.T) {
	src := `Feature: Import API

  Scenario: Upload a payload
    When the client posts
      """
      {"name": "example"}
      """
    Then the response contains
      | field | value |
      | name  | example |
`
	parsed, err := ParseFile(strings.NewReader(src), "import.feature")
	require.NoError(t, err)
	require.Len(t, parsed.Cases, 1)

	steps := parsed.Cases[0].Steps
	assert.Contains(t, steps, `  {"name": "example"}`)
	assert.Contains(t, steps, "  | field | value |")
	assert.Contains(t, steps, "  | name | example |")
}

func TestParseFileRuleScenarios(t *testing.T) {
	src := `Feature: Discounts

  Rule: Members only

    Background:
      Given a signed-in member

    Scenario: Member discount applies
      When the member checks out
      Then a discount is applied
`
	parsed, err := ParseFile(strings.NewReader(src), "discounts.feature")
	require.NoError(t, err)
	require.Len(t, parsed.Cases, 1)
	assert.Equal(t, "Member discount applies", parsed.Cases[0].Title)
	assert.Equal(t, "Given a signed-in member", parsed.Cases[0].Preconditions)
}

func TestParseFileErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := ParseFile(strings.NewReader(""), "empty.feature")
		assert.Error(t, err)
	})

	t.Run("broken gherkin", func(t *testing.T) {
		// A tag line with nothing after it is a parse error
		_, err := ParseFile(strings.NewReader("@orphan\n"), "broken.feature")
		assert.Error(t, err)
	})

	t.Run("background only yields zero cases", func(t *testing.T) {
		src := "Feature: Setup only\n\n  Background:\n    Given a precondition\n"
		parsed, err := ParseFile(strings.NewReader(src), "setup.feature")
		require.NoError(t, err)
		assert.Empty(t, parsed.Cases)
	})

	t.Run("duplicate scenario names are allowed", func(t *testing.T) {
		src := `Feature: Dupes

  Scenario: Same name
    When something happens
    Then it is fine

  Scenario: Same name
    When something else happens
    Then it is also fine
`
		parsed, err := ParseFile(strings.NewReader(src), "dupes.feature")
		require.NoError(t, err)
		assert.Len(t, parsed.Cases, 2)
	})
}
