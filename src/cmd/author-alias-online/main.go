package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sortbook/src/internal/alias"
	"sortbook/src/internal/logging"
)

var (
	root            string
	outCSV          string
	preferLang      string
	limit           int
	timeoutSeconds  int
	dryRun          bool
	verbose         bool
	identityBaseURL string
	debug           bool
)

var rootCmd = &cobra.Command{
	Use:   "author-alias-online",
	Short: "Resolve author folder names against an online identity service",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(logging.Options{Debug: debug})
		if err != nil {
			return err
		}

		if identityBaseURL != "" {
			alias.SetAPIBaseURL(identityBaseURL)
		}

		cfg := alias.Config{
			Root:       root,
			OutCSV:     outCSV,
			PreferLang: preferLang,
			Limit:      limit,
			Timeout:    time.Duration(timeoutSeconds) * time.Second,
			DryRun:     dryRun,
			Verbose:    verbose,
		}

		count, err := alias.Run(cmd.Context(), cfg, func(format string, args ...any) {
			log.Infof(format, args...)
		})
		if err != nil {
			return err
		}
		log.Infof("Terminé. %d propositions écrites.", count)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&root, "root", ".", "root directory of author folders")
	rootCmd.Flags().StringVar(&outCSV, "out-csv", "author_aliases.csv", "output path for the alias proposals report")
	rootCmd.Flags().StringVar(&preferLang, "prefer-lang", "en", "preferred label language: en|fr")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "stop after N author folders (0 = unlimited)")
	rootCmd.Flags().IntVar(&timeoutSeconds, "timeout", 15, "per-request timeout in seconds")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", true, "report planned changes without applying them")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "log every rename/merge decision")
	rootCmd.Flags().StringVar(&identityBaseURL, "identity-base-url", "", "override the identity service base URL (for testing)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
