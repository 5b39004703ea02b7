package workbook

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/caseflow/caseflow/internal/types"
)

// RowError is a non-fatal problem with one CSV record. Imports collect
// these and keep going.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseResult holds the candidate rows recovered from a CSV workbook
type ParseResult struct {
	Rows    []*types.WorkbookRow `json:"rows"`
	Errors  []RowError           `json:"errors,omitempty"`
	Skipped int                  `json:"skipped"`
}

// column identifies a candidate field a CSV header can map onto
type column int

const (
	colIgnore column = iota
	colTitle
	colDescription
	colPreconditions
	colSteps
	colExpectedResult
	colPriority
	colTags
)

// headerAliases maps normalized header names onto candidate fields.
// Normalization strips spaces, underscores, and hyphens and lowercases,
// so "Expected Result", "expected_result", and "ExpectedResult" all match.
var headerAliases = map[string]column{
	"title":           colTitle,
	"name":            colTitle,
	"testcase":        colTitle,
	"testcasename":    colTitle,
	"case":            colTitle,
	"description":     colDescription,
	"desc":            colDescription,
	"summary":         colDescription,
	"preconditions":   colPreconditions,
	"precondition":    colPreconditions,
	"prerequisites":   colPreconditions,
	"setup":           colPreconditions,
	"steps":           colSteps,
	"teststeps":       colSteps,
	"procedure":       colSteps,
	"expectedresult":  colExpectedResult,
	"expectedresults": colExpectedResult,
	"expected":        colExpectedResult,
	"result":          colExpectedResult,
	"priority":        colPriority,
	"tags":            colTags,
	"labels":          colTags,
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// ParseCSV reads a workbook export. The first record is the header;
// columns are matched by alias and unknown columns are ignored. Rows
// missing a title or steps are reported as errors, fully empty rows are
// skipped silently.
func ParseCSV(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("workbook is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	mapping := make([]column, len(header))
	hasTitle, hasSteps := false, false
	for i, h := range header {
		col, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			col = colIgnore
		}
		mapping[i] = col
		if col == colTitle {
			hasTitle = true
		}
		if col == colSteps {
			hasSteps = true
		}
	}
	if !hasTitle || !hasSteps {
		return nil, fmt.Errorf("workbook must have title and steps columns (got: %s)",
			strings.Join(header, ", "))
	}

	result := &ParseResult{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}

		if isEmptyRecord(record) {
			result.Skipped++
			continue
		}

		row, rowErrs := buildRow(record, mapping, line)
		result.Errors = append(result.Errors, rowErrs...)
		if row != nil {
			result.Rows = append(result.Rows, row)
		}
	}

	return result, nil
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// buildRow maps one CSV record onto a candidate row. A nil row means the
// record was unusable; errors may be returned alongside a usable row
// (e.g. an unparseable priority falls back to the default).
func buildRow(record []string, mapping []column, line int) (*types.WorkbookRow, []RowError) {
	row := &types.WorkbookRow{
		ID:         uuid.NewString(),
		LineNumber: line,
		Priority:   2,
		Status:     types.RowPending,
	}

	var errs []RowError
	for i, field := range record {
		if i >= len(mapping) {
			break
		}
		value := strings.TrimSpace(field)
		switch mapping[i] {
		case colTitle:
			row.Title = value
		case colDescription:
			row.Description = value
		case colPreconditions:
			row.Preconditions = value
		case colSteps:
			row.Steps = value
		case colExpectedResult:
			row.ExpectedResult = value
		case colPriority:
			if value == "" {
				continue
			}
			p, err := parsePriority(value)
			if err != nil {
				errs = append(errs, RowError{Line: line, Message: err.Error()})
				continue
			}
			row.Priority = p
		case colTags:
			row.Tags = splitTags(value)
		}
	}

	if row.Title == "" {
		return nil, append(errs, RowError{Line: line, Message: "missing title"})
	}
	if row.Steps == "" {
		return nil, append(errs, RowError{Line: line, Message: "missing steps"})
	}
	return row, errs
}

// parsePriority accepts 0-4, p0-p4, and the common severity words
func parsePriority(value string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimPrefix(v, "p")

	switch v {
	case "critical", "blocker":
		return 0, nil
	case "high":
		return 1, nil
	case "medium", "normal":
		return 2, nil
	case "low", "minor":
		return 3, nil
	}

	p, err := strconv.Atoi(v)
	if err != nil || p < 0 || p > 4 {
		return 0, fmt.Errorf("invalid priority %q", value)
	}
	return p, nil
}

func splitTags(value string) []string {
	if value == "" {
		return nil
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var tags []string
	for _, f := range fields {
		if tag := strings.TrimSpace(f); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
