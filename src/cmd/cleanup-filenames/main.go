package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sortbook/src/internal/dedupe"
	"sortbook/src/internal/logging"
)

var (
	root    string
	exts    string
	dryRun  bool
	verbose bool
	workers int
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "cleanup-filenames",
	Short: "Deduplicate near-identical filenames within each author folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(logging.Options{Debug: debug})
		if err != nil {
			return err
		}

		cfg := dedupe.Config{
			Root:    root,
			Exts:    dedupe.ParseExts(exts),
			DryRun:  dryRun,
			Verbose: verbose,
			Workers: workers,
		}

		count, err := dedupe.Run(cmd.Context(), cfg, func(format string, args ...any) {
			log.Infof(format, args...)
		})
		if err != nil {
			return err
		}
		log.Infof("Terminé. %d groupes traités.", count)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&root, "root", ".", "root directory of author folders")
	rootCmd.Flags().StringVar(&exts, "exts", "", "comma-separated extensions to consider (empty = all)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", true, "report planned changes without applying them")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "log every rename/delete decision")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "max concurrent author directories (0 = GOMAXPROCS)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
