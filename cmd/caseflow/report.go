package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/report"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report <release-id>",
	Short: "Generate a PDF release report",
	Long: `Generate a release report: run summary with pass rate, per-case
results, linked stories and production tickets.

Examples:
  caseflow report rel-3
  caseflow report rel-3 -o summer-release.pdf`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		releaseID := args[0]

		data, err := report.Collect(ctx, openStore(ctx), releaseID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		out := reportOutput
		if out == "" {
			out = releaseID + ".pdf"
		}
		if err := report.RenderFile(data, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s Wrote %s (%d cases, %.1f%% pass rate)\n",
			green("✓"), cyan(out), data.Summary.TotalCases, data.Summary.PassRate*100)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Output file (default <release-id>.pdf)")
}
