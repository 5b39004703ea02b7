package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/workbook"
)

var (
	importName   string
	importModule string
)

var importCmd = &cobra.Command{
	Use:   "import <csv-file>",
	Short: "Import a CSV workbook of candidate test cases",
	Long: `Parse a CSV workbook and stage its rows for review.

Rows that closely match an existing test case (or an earlier row in the
same file) are flagged as duplicates and need an explicit decision during
review. Use "caseflow approve" to review staged rows.

Header names are matched loosely: Title/Name, Steps/Test Steps,
Expected Result/Expected, Priority, Tags/Labels, and so on.

Examples:
  caseflow import testcases.csv --name sprint-42
  caseflow import qa-backlog.csv --name backlog --module checkout`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		path := args[0]

		name := importName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		s := openStore(ctx)
		moduleID := ""
		if importModule != "" {
			m, err := s.GetModuleByName(ctx, importModule)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: module %q: %v\n", importModule, err)
				os.Exit(1)
			}
			moduleID = m.ID
		}

		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		pipeline := workbook.NewPipeline(s, buildDetector(s))
		summary, err := pipeline.Import(ctx, f, name, filepath.Base(path), moduleID, "cli")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: import failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("\n%s Imported workbook %s (%s)\n\n", green("✓"), cyan(summary.Workbook.ID), name)
		fmt.Printf("  Rows staged:     %d\n", summary.Imported)
		if summary.Skipped > 0 {
			fmt.Printf("  Rows skipped:    %d\n", summary.Skipped)
		}
		if summary.Flagged > 0 {
			fmt.Printf("  %s %d row(s) flagged as likely duplicates\n", yellow("!"), summary.Flagged)
		}
		for _, rowErr := range summary.Errors {
			fmt.Printf("  %s line %d: %s\n", yellow("!"), rowErr.Line, rowErr.Message)
		}
		fmt.Printf("\nNext: caseflow approve %s\n", summary.Workbook.ID)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importName, "name", "", "Workbook name (default: file name)")
	importCmd.Flags().StringVar(&importModule, "module", "", "Module name for approved rows")
}
