package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sortbook/src/internal/catalog"
	"sortbook/src/internal/consolidate"
	"sortbook/src/internal/logging"
)

var (
	root              string
	dbPath            string
	csvPath           string
	minFiles          int
	probableThreshold float64
	dryRun            bool
	debug             bool
)

var rootCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Normalize and merge author folders against the local catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(logging.Options{Debug: debug})
		if err != nil {
			return err
		}

		db, err := catalog.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer db.Close()

		cfg := consolidate.Config{
			Root:              root,
			CSVPath:           csvPath,
			MinFiles:          minFiles,
			ProbableThreshold: probableThreshold,
			DryRun:            dryRun,
		}

		return consolidate.Run(cfg, db, func(format string, args ...any) {
			log.Infof(format, args...)
		})
	},
}

func init() {
	rootCmd.Flags().StringVar(&root, "root", ".", "root directory of author folders")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the sqlite catalog (required)")
	rootCmd.Flags().StringVar(&csvPath, "csv", "authors.csv", "output path for the authors report")
	rootCmd.Flags().IntVar(&minFiles, "min-files", 0, "skip merge candidates with fewer than N files")
	rootCmd.Flags().Float64Var(&probableThreshold, "probable-threshold", 0.90, "minimum score for a probable match to count as a merge group")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report planned changes without applying them")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("db")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
