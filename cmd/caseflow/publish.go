package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/feature"
)

var publishModule string

var publishCmd = &cobra.Command{
	Use:   "publish <file>...",
	Short: "Publish Gherkin feature files as draft test cases",
	Long: `Parse .feature files and create one draft test case per scenario
(scenario outlines expand per example row).

The target module comes from a @module:<name> tag on the feature, or from
--module, which wins when both are set.

Examples:
  caseflow publish features/login.feature
  caseflow publish features/*.feature --module checkout`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		publisher := feature.NewPublisher(openStore(ctx))

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		failed := 0
		totalCases := 0
		for _, path := range args {
			result, err := publisher.PublishFile(ctx, path, publishModule, "cli")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
				failed++
				continue
			}
			totalCases += len(result.CaseIDs)
			fmt.Printf("%s %s: %d cases from %q\n",
				green("✓"), cyan(path), len(result.CaseIDs), result.Feature)
			for _, id := range result.CaseIDs {
				fmt.Printf("    %s\n", id)
			}
		}

		fmt.Printf("\nPublished %d test cases from %d file(s)\n", totalCases, len(args)-failed)
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "%d file(s) failed\n", failed)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishModule, "module", "", "Module name, overrides the @module tag")
}
