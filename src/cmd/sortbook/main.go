package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sortbook/src/internal/llm"
	"sortbook/src/internal/logging"
	"sortbook/src/internal/sortpipeline"
)

var (
	ext         string
	limit       uint64
	debug       bool
	purge       bool
	root        string
	mode        string
	authorHints int
	logFile     string
	noOLMeta    bool
	llmCmd      string
	llmModel    string
)

var rootCmd = &cobra.Command{
	Use:   "sortbook",
	Short: "Sort a raw ebook drop into canonical author folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ext == "" {
			return fmt.Errorf("--ext is required")
		}

		log, err := logging.New(logging.Options{Debug: debug, LogFile: logFile})
		if err != nil {
			return err
		}

		cfg := sortpipeline.Config{
			Root:        root,
			Ext:         ext,
			Limit:       int(limit),
			Mode:        sortpipeline.Mode(mode),
			AuthorHints: authorHints,
			Purge:       purge,
			NoOLMeta:    noOLMeta,
		}

		invoker := llm.NewOllamaInvoker(llmModel)
		invoker.Command = llmCmd

		p, err := sortpipeline.New(cfg, invoker, log)
		if err != nil {
			return fmt.Errorf("initialize sort pipeline: %w", err)
		}
		defer p.Close()

		return p.Run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&ext, "ext", "", "file extension to sort (required, e.g. epub)")
	rootCmd.Flags().Uint64Var(&limit, "limit", 0, "stop after N files (0 = unlimited)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&purge, "purge", false, "remove output trees and state log before running")
	rootCmd.Flags().StringVar(&root, "root", ".", "working root directory")
	rootCmd.Flags().StringVar(&mode, "mode", "full", "matching mode: strict|normal|full")
	rootCmd.Flags().IntVar(&authorHints, "author-hints", 2000, "number of author names to seed the LLM prompt with")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "additionally tee logs to this file")
	rootCmd.Flags().BoolVar(&noOLMeta, "no-ol-meta", false, "skip OpenLibrary title enrichment on strict hits")
	rootCmd.Flags().StringVar(&llmCmd, "llm-cmd", "ollama", "LLM command to invoke")
	rootCmd.Flags().StringVar(&llmModel, "llm-model", "mistral", "LLM model name")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
