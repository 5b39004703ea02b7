package workbook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	csv := `Title,Description,Pre Conditions,Steps,Expected Result,Priority,Tags
Login works,Happy path,User exists,1. Open page 2. Log in,Dashboard shown,high,"auth, smoke"
Logout works,,,1. Click logout,Login page shown,,`

	result, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Empty(t, result.Errors)

	first := result.Rows[0]
	assert.Equal(t, 2, first.LineNumber)
	assert.Equal(t, "Login works", first.Title)
	assert.Equal(t, "Happy path", first.Description)
	assert.Equal(t, "User exists", first.Preconditions)
	assert.Equal(t, "1. Open page 2. Log in", first.Steps)
	assert.Equal(t, "Dashboard shown", first.ExpectedResult)
	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, []string{"auth", "smoke"}, first.Tags)
	assert.NotEmpty(t, first.ID)

	second := result.Rows[1]
	assert.Equal(t, 3, second.LineNumber)
	assert.Equal(t, 2, second.Priority) // default when blank
	assert.Empty(t, second.Tags)
}

func TestParseCSVFlexibleHeaders(t *testing.T) {
	// Same columns under different spellings
	csv := `test_case_name,TEST STEPS,expected,labels
Search by tag,Type a tag and press enter,Matching cases listed,search
`
	result, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "Search by tag", row.Title)
	assert.Equal(t, "Type a tag and press enter", row.Steps)
	assert.Equal(t, "Matching cases listed", row.ExpectedResult)
	assert.Equal(t, []string{"search"}, row.Tags)
}

func TestParseCSVCollectsRowErrors(t *testing.T) {
	csv := `title,steps,priority
,no title here,1
Has title,,2
Good row,step one,nonsense
Fine row,step one,3
`
	result, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)

	// Two rows dropped (missing title, missing steps), one kept despite a
	// bad priority, one clean
	require.Len(t, result.Rows, 2)
	require.Len(t, result.Errors, 3)

	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Contains(t, result.Errors[0].Message, "missing title")
	assert.Contains(t, result.Errors[1].Message, "missing steps")
	assert.Contains(t, result.Errors[2].Message, "invalid priority")

	// Bad priority falls back to the default
	assert.Equal(t, "Good row", result.Rows[0].Title)
	assert.Equal(t, 2, result.Rows[0].Priority)
	assert.Equal(t, 3, result.Rows[1].Priority)
}

func TestParseCSVSkipsEmptyRows(t *testing.T) {
	csv := "title,steps\nReal row,do things\n,\n  ,  \n"
	result, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, result.Errors)
}

func TestParseCSVRejectsMissingRequiredColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("description,priority\nfoo,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title and steps")

	_, err = ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"4", 4, false},
		{"P1", 1, false},
		{"critical", 0, false},
		{"High", 1, false},
		{"medium", 2, false},
		{"low", 3, false},
		{"5", 0, true},
		{"-1", 0, true},
		{"urgent-ish", 0, true},
	}
	for _, tt := range tests {
		p, err := parsePriority(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, p, "input %q", tt.input)
	}
}
