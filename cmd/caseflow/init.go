package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the caseflow database in the current directory",
	Long: `Initialize caseflow by creating the database directory and schema.

This creates:
  - .caseflow/ directory (unless the configured path says otherwise)
  - the SQLite database with the full schema

Example:
  cd ~/myproject
  caseflow init
  caseflow init --config team.yaml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		dbPath := cfg.Database.Path
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to create %s: %v\n", dir, err)
				os.Exit(1)
			}
		}

		// Opening the database applies the schema
		db, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize database: %v\n", err)
			os.Exit(1)
		}
		_ = db.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized caseflow\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(dbPath))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("caseflow import testcases.csv --name sprint-1  # Import a workbook"))
		fmt.Printf("  %s\n", gray("caseflow publish features/*.feature            # Publish feature files"))
		fmt.Printf("  %s\n", gray("caseflow serve                                 # Start the API server"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
