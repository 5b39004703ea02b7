package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/search"
	"github.com/caseflow/caseflow/internal/storage"
	"github.com/caseflow/caseflow/internal/types"
)

var searchInteractive bool

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search test cases with natural-language queries",
	Long: `Search the catalog. Queries are classified into an intent (list,
count, failures, stories, recent) plus filters for module, priority,
automation status, tags, and time windows.

Examples:
  caseflow search "automated p1 cases in the checkout module"
  caseflow search "how many manual cases"
  caseflow search "failed cases in release v2.1.0"
  caseflow search -i    # interactive shell`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)

		if searchInteractive {
			if err := runSearchShell(ctx, s); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: provide a query or use -i for the interactive shell\n")
			os.Exit(1)
		}
		if err := runSearch(ctx, s, strings.Join(args, " ")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runSearch(ctx context.Context, s storage.Storage, query string) error {
	classifier := search.NewClassifier()
	intent := classifier.Classify(query)

	results, err := search.Execute(ctx, s, intent)
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

func runSearchShell(ctx context.Context, s storage.Storage) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("caseflow> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Type a query, or 'exit' to leave.")
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := runSearch(ctx, s, line); err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

func printResults(results *search.Results) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(results.Intent.Explanation) > 0 {
		fmt.Printf("%s\n", gray("Understood: "+strings.Join(results.Intent.Explanation, ", ")))
	}
	if results.Intent.Confidence <= 0.2 {
		fmt.Printf("%s\n", yellow("Plain text search (no query signals recognized)"))
	}

	switch {
	case results.Count != nil:
		fmt.Printf("\n%d matching test case(s)\n", *results.Count)

	case results.Stories != nil:
		fmt.Printf("\n%d stories:\n", len(results.Stories))
		for _, story := range results.Stories {
			fmt.Printf("  %s  %s [%s]\n", story.Key, story.Summary, story.Status)
		}

	case results.Runs != nil:
		fmt.Printf("\n%d failed run(s):\n", len(results.Runs))
		for _, run := range results.Runs {
			fmt.Printf("  %s  %s (release %s)\n", run.CaseID, run.CaseTitle, run.ReleaseID)
		}

	default:
		fmt.Printf("\n%d test case(s):\n", len(results.Cases))
		for _, c := range results.Cases {
			printCaseLine(c)
		}
	}
	fmt.Println()
}

func printCaseLine(c *types.TestCase) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	tags := ""
	if len(c.Tags) > 0 {
		tags = " " + gray("#"+strings.Join(c.Tags, " #"))
	}
	fmt.Printf("  %s  P%d [%s/%s] %s%s\n", c.ID, c.Priority, c.Status, c.Automation, c.Title, tags)
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVarP(&searchInteractive, "interactive", "i", false, "Start an interactive search shell")
}
