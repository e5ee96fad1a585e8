package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
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

func TestDefaultFlagValues(t *testing.T) {
	flags := rootCmd.Flags()
	if got := flags.Lookup("dry-run").DefValue; got != "true" {
		t.Errorf("default dry-run = %q, want true", got)
	}
	if got := flags.Lookup("prefer-lang").DefValue; got != "en" {
		t.Errorf("default prefer-lang = %q, want en", got)
	}
	if got := flags.Lookup("timeout").DefValue; got != "15" {
		t.Errorf("default timeout = %q, want 15", got)
	}
}

func TestRunAgainstFakeIdentityServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "wbsearchentities":
			w.Write([]byte(`{"search":[{"id":"Q1","label":"Jules Verne","description":"french novelist"}]}`))
		case "wbgetentities":
			w.Write([]byte(`{"entities":{"Q1":{"claims":{},"labels":{}}}}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Jules Verne"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	outCSV := filepath.Join(root, "proposals.csv")

	if _, err := execRoot(
		"--root", root,
		"--out-csv", outCSV,
		"--identity-base-url", srv.URL,
		"--dry-run=true",
	); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if _, err := os.Stat(outCSV); err != nil {
		t.Errorf("expected a proposals CSV at %s: %v", outCSV, err)
	}
}
