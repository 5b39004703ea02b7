package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/types"
	"github.com/caseflow/caseflow/internal/workbook"
)

const approveActor = "cli"

var (
	approveAll   bool
	approveRowID string
	rejectRowID  string
)

var approveCmd = &cobra.Command{
	Use:   "approve <workbook-id>",
	Short: "Review staged workbook rows",
	Long: `Review the rows of an imported workbook.

Without flags, lists the rows and their review state. --all approves every
pending row and finalizes the workbook; duplicate-flagged rows are left
untouched and need --row to approve explicitly (which overrules the
duplicate detector).

Examples:
  caseflow approve wb-1                 # Show rows awaiting review
  caseflow approve wb-1 --all           # Approve all pending rows
  caseflow approve wb-1 --row <row-id>  # Approve one row
  caseflow approve wb-1 --reject <row-id>`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		workbookID := args[0]
		s := openStore(ctx)
		pipeline := workbook.NewPipeline(s, nil)

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		switch {
		case approveRowID != "":
			c, err := pipeline.ApproveRow(ctx, approveRowID, approveActor)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Approved row as %s: %s\n", green("✓"), c.ID, c.Title)

		case rejectRowID != "":
			if err := pipeline.RejectRow(ctx, rejectRowID, approveActor); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Rejected row %s\n", red("✗"), rejectRowID)

		case approveAll:
			approved, err := pipeline.ApproveAllPending(ctx, workbookID, approveActor)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			status, err := pipeline.Finalize(ctx, workbookID, approveActor)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: finalize failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Approved %d row(s), workbook is now %s\n", green("✓"), approved, status)

		default:
			showWorkbookRows(ctx, workbookID)
			return
		}

		showWorkbookRows(ctx, workbookID)
	},
}

func showWorkbookRows(ctx context.Context, workbookID string) {
	wb, err := store.GetWorkbook(ctx, workbookID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	rows, err := store.GetWorkbookRows(ctx, workbookID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\nWorkbook %s (%s) - %s\n\n", cyan(wb.ID), wb.Name, wb.Status)
	for _, row := range rows {
		marker := " "
		note := ""
		switch row.Status {
		case types.RowDuplicate:
			marker = yellow("!")
			note = fmt.Sprintf(" %s", gray(fmt.Sprintf("(%.0f%% match with %s)", row.Similarity*100, row.DuplicateOf)))
		case types.RowApproved:
			marker = "✓"
			note = fmt.Sprintf(" %s", gray("-> "+row.CaseID))
		case types.RowRejected:
			marker = "✗"
		}
		fmt.Printf("  %s [%s] line %d: %s%s\n", marker, row.Status, row.LineNumber, row.Title, note)
		fmt.Printf("      %s\n", gray("row "+row.ID))
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().BoolVar(&approveAll, "all", false, "Approve every pending row and finalize")
	approveCmd.Flags().StringVar(&approveRowID, "row", "", "Approve a single row by ID")
	approveCmd.Flags().StringVar(&rejectRowID, "reject", "", "Reject a single row by ID")
}
