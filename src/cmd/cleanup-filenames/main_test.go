package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func execRoot(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRunDeduplicatesViaCLI(t *testing.T) {
	root := t.TempDir()
	authorDir := filepath.Join(root, "Verne, Jules")
	if err := os.MkdirAll(authorDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(authorDir, "Vingt Mille Lieues.epub"), []byte("short"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(authorDir, "vingt-mille-lieues.epub"), []byte("a much longer body"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := execRoot("--root", root, "--dry-run=false"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	entries, err := os.ReadDir(authorDir)
	if err != nil {
		t.Fatalf("read author dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 surviving file, got %d: %v", len(entries), entries)
	}
}

func TestDefaultDryRunIsTrue(t *testing.T) {
	if got := rootCmd.Flags().Lookup("dry-run").DefValue; got != "true" {
		t.Errorf("default dry-run = %q, want true", got)
	}
}
