package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"

	"github.com/caseflow/caseflow/internal/types"
)

const maxTitleLen = 70

// Render writes a release report as PDF
func Render(data *Data, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	release := data.Summary.Release

	// Header
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Release Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("%s (%s)", release.Name, release.Version), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s    Generated: %s",
		release.Status, data.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	renderSummary(pdf, data.Summary)
	renderRuns(pdf, data.Runs)
	renderStories(pdf, data.Summary.Stories)
	renderTickets(pdf, data.Summary.Tickets)

	return pdf.Output(w)
}

// RenderFile writes the report to a file on disk
func RenderFile(data *Data, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := Render(data, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func renderSummary(pdf *fpdf.Fpdf, summary *types.ReleaseSummary) {
	sectionHeader(pdf, "Run Summary")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Linked test cases: %d", summary.TotalCases), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Pass rate (of executed): %.1f%%", summary.PassRate*100), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	statuses := []types.RunStatus{types.RunPass, types.RunFail, types.RunBlocked, types.RunNotRun}
	pdf.SetFont("Helvetica", "B", 10)
	for _, s := range statuses {
		pdf.CellFormat(35, 7, string(s), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, s := range statuses {
		pdf.CellFormat(35, 7, fmt.Sprintf("%d", summary.ByRunStatus[s]), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.Ln(6)
}

func renderRuns(pdf *fpdf.Fpdf, runs []*types.CaseRun) {
	sectionHeader(pdf, "Test Case Results")
	if len(runs) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "No test cases linked to this release.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(22, 7, "ID", "1", 0, "L", false, 0, "")
	pdf.CellFormat(118, 7, "Title", "1", 0, "L", false, 0, "")
	pdf.CellFormat(18, 7, "Priority", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 7, "Result", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, run := range runs {
		pdf.CellFormat(22, 6, run.CaseID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(118, 6, truncate(run.CaseTitle, maxTitleLen), "1", 0, "L", false, 0, "")
		pdf.CellFormat(18, 6, fmt.Sprintf("P%d", run.Priority), "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, string(run.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)
}

func renderStories(pdf *fpdf.Fpdf, stories []*types.Story) {
	if len(stories) == 0 {
		return
	}
	sectionHeader(pdf, "Linked Stories")
	pdf.SetFont("Helvetica", "", 9)
	for _, s := range stories {
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  %s  [%s]", s.Key, truncate(s.Summary, 80), s.Status),
			"", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func renderTickets(pdf *fpdf.Fpdf, tickets []*types.ProductionTicket) {
	if len(tickets) == 0 {
		return
	}
	sectionHeader(pdf, "Production Tickets")
	pdf.SetFont("Helvetica", "", 9)
	for _, t := range tickets {
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  %s  [%s/%s]", t.Key, truncate(t.Summary, 80), t.Severity, t.Status),
			"", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
