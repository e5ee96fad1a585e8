package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultLevel(t *testing.T) {
	log, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entry, ok := log.(*logrus.Logger)
	if !ok {
		t.Fatalf("New did not return *logrus.Logger: %T", log)
	}
	if entry.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want Info", entry.GetLevel())
	}
}

func TestNewDebugLevel(t *testing.T) {
	log, err := New(Options{Debug: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entry := log.(*logrus.Logger)
	if entry.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want Debug", entry.GetLevel())
	}
}

func TestNewWithLogFileWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")

	log, err := New(Options{LogFile: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hello from test")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log file to contain the logged line")
	}
}

func TestNewInvalidLogFilePath(t *testing.T) {
	if _, err := New(Options{LogFile: filepath.Join(t.TempDir(), "nope", "missing", "out.log")}); err == nil {
		t.Error("expected an error for an unwritable log file path")
	}
}
